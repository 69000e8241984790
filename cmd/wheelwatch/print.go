package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"wheelwatch/internal/hierarchy"
	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
)

const timeLayout = "2006-01-02 15:04:05"

type tone int

const (
	plain tone = iota
	good
	bad
)

// cell is one table value with an optional status color.
type cell struct {
	text string
	tone tone
}

func toned(text string, isBad bool) cell {
	if isBad {
		return cell{text, bad}
	}
	return cell{text, good}
}

// printer renders query results. Status cells are colored only when
// writing to a terminal.
type printer struct {
	w     io.Writer
	color bool
}

type table struct {
	t     *tablewriter.Table
	color bool
}

func (p *printer) table(header ...string) *table {
	t := tablewriter.NewWriter(p.w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetCenterSeparator("")
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return &table{t: t, color: p.color}
}

func (t *table) row(cells ...cell) {
	texts := make([]string, len(cells))
	for i, c := range cells {
		texts[i] = c.text
	}
	if !t.color {
		t.t.Append(texts)
		return
	}

	colors := make([]tablewriter.Colors, len(cells))
	for i, c := range cells {
		switch c.tone {
		case bad:
			colors[i] = tablewriter.Colors{tablewriter.FgRedColor}
		case good:
			colors[i] = tablewriter.Colors{tablewriter.FgGreenColor}
		default:
			colors[i] = tablewriter.Colors{}
		}
	}
	t.t.Rich(texts, colors)
}

func (t *table) render() {
	t.t.Render()
}

func (p *printer) paint(c cell) string {
	if !p.color || c.tone == plain {
		return c.text
	}
	code := "32"
	if c.tone == bad {
		code = "31"
	}
	return "\x1b[" + code + "m" + c.text + "\x1b[0m"
}

func attention(needs bool) cell {
	if needs {
		return cell{"ATTENTION", bad}
	}
	return cell{"OK", good}
}

func text(s string) cell { return cell{text: s} }

func number(n int) cell { return cell{text: strconv.Itoa(n)} }

func (p *printer) trainDays(days []hierarchy.TrainDay) {
	if len(days) == 0 {
		fmt.Fprintln(p.w, "No reports.")
		return
	}
	t := p.table("KEY", "TRAIN", "DATE", "LATEST", "COMPARTMENTS", "STATUS")
	for _, d := range days {
		t.row(
			text(d.Key.String()),
			number(d.Key.TrainNumber),
			text(d.Key.Date),
			text(d.Latest.Local().Format(timeLayout)),
			number(len(d.Compartments)),
			attention(d.NeedsAttention),
		)
	}
	t.render()
}

func (p *printer) compartments(comps []hierarchy.Compartment) {
	t := p.table("COMPARTMENT", "WHEELS", "SURFACE", "STATUS")
	for _, c := range comps {
		t.row(
			number(c.Number),
			number(len(c.Wheels)),
			toned(report.SurfaceStatus(c.Flawed), c.Flawed),
			attention(c.NeedsAttention),
		)
	}
	t.render()
}

func (p *printer) wheels(wheels []hierarchy.Wheel, imageURL func(string) string) {
	t := p.table("WHEEL", "ID", "DIAMETER", "SURFACE", "CONDITION", "RECOMMENDATION", "INSPECTED", "IMAGE")
	for _, w := range wheels {
		t.row(
			number(w.Report.WheelNumber),
			text(w.Report.ID),
			text(diameter(w.Report.WheelDiameterMm)),
			toned(w.Derived.SurfaceStatus, w.Report.SurfaceFlawed),
			condition(w.Derived.Condition),
			text(w.Derived.Recommendation),
			text(w.Report.Timestamp.Local().Format(timeLayout)),
			text(imageURL(w.Report.ImagePath)),
		)
	}
	t.render()
}

func (p *printer) summary(s hierarchy.Summary, imageURL func(string) string) {
	fmt.Fprintf(p.w, "Train %d on %s (latest %s)\n", s.Key.TrainNumber, s.Key.Date, s.Latest.Local().Format(timeLayout))
	fmt.Fprintf(p.w, "Surface:        %s\n", p.paint(toned(s.SurfaceStatus, s.SurfaceStatus == report.StatusFlawDetected)))
	fmt.Fprintf(p.w, "Condition:      %s\n", p.paint(condition(s.Condition)))
	fmt.Fprintf(p.w, "Recommendation: %s\n", s.Recommendation)
	fmt.Fprintf(p.w, "Wheels:         %d (%d flawed, %d worn)\n", s.Wheels, s.FlawedWheels, s.WornWheels)
	for _, w := range s.Images {
		fmt.Fprintf(p.w, "  image c%d w%d: %s\n", w.Report.CompartmentNumber, w.Report.WheelNumber, imageURL(w.Report.ImagePath))
	}
}

func (p *printer) reports(reports []report.InspectionReport) {
	if len(reports) == 0 {
		fmt.Fprintln(p.w, "No matching reports.")
		return
	}
	t := p.table("ID", "TRAIN", "COMPARTMENT", "WHEEL", "DIAMETER", "SURFACE", "INSPECTED")
	for _, r := range reports {
		t.row(
			text(r.ID),
			number(r.TrainNumber),
			number(r.CompartmentNumber),
			number(r.WheelNumber),
			text(diameter(r.WheelDiameterMm)),
			toned(report.SurfaceStatus(r.SurfaceFlawed), r.SurfaceFlawed),
			text(r.Timestamp.Local().Format(timeLayout)),
		)
	}
	t.render()
}

// change prints one line per state change during watch.
func (p *printer) change(c inspect.Change, derive func(report.InspectionReport) report.Derived, now time.Time) {
	ts := now.Format(timeLayout)
	switch {
	case c.Resync:
		fmt.Fprintf(p.w, "%s  resync   %d reports in %d train days\n", ts, c.Reports, c.TrainDays)
	case !c.Changed:
	case c.Event.Type == report.EventDeleted:
		fmt.Fprintf(p.w, "%s  deleted  %s\n", ts, c.Event.Report.ID)
	default:
		r := c.Event.Report
		d := derive(r)
		fmt.Fprintf(p.w, "%s  %-8s %s  t%d c%d w%d  %s  %s\n", ts, c.Event.Type, r.ID,
			r.TrainNumber, r.CompartmentNumber, r.WheelNumber,
			p.paint(toned(d.SurfaceStatus, r.SurfaceFlawed)),
			p.paint(condition(d.Condition)))
	}
}

func condition(c report.Condition) cell {
	switch c {
	case report.ConditionBad:
		return cell{string(c), bad}
	case report.ConditionGood:
		return cell{string(c), good}
	default:
		return text(string(c))
	}
}

func diameter(mm *float64) string {
	if mm == nil {
		return "-"
	}
	return strconv.FormatFloat(*mm, 'f', -1, 64) + " mm"
}
