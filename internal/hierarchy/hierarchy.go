// Package hierarchy groups derived reports into the train/day, compartment
// and wheel tree and keeps its rollup status current.
package hierarchy

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"wheelwatch/internal/report"
)

// ErrNotFound is returned when a queried train day or compartment does not exist.
var ErrNotFound = errors.New("not found")

// State distinguishes a hierarchy that never saw a report from one that did.
type State int

const (
	// Empty means no report has been ingested yet.
	Empty State = iota
	// Populated means at least one report was ingested. It may since have
	// been deleted, in which case the tree is confirmed empty.
	Populated
)

func (s State) String() string {
	if s == Populated {
		return "populated"
	}
	return "empty"
}

// Wheel is one leaf of the tree.
type Wheel struct {
	Report  report.InspectionReport
	Derived report.Derived
}

// Compartment holds the visible wheels of one compartment, ordered by wheel number.
// NeedsAttention is set when any wheel is flawed or BAD; Flawed only tracks
// surface flaws.
type Compartment struct {
	Number         int
	NeedsAttention bool
	Flawed         bool
	Wheels         []Wheel
}

// TrainDay holds one train's compartments for one calendar day, ordered by
// compartment number. Latest is the newest inspection time in the bucket.
type TrainDay struct {
	Key            TrainDayKey
	Latest         time.Time
	NeedsAttention bool
	Flawed         bool
	Compartments   []Compartment
}

type location struct {
	key         TrainDayKey
	compartment int
}

type compartmentNode struct {
	// reports keeps every report in the bucket, including those shadowed by
	// a newer report for the same wheel number, so deleting the winner
	// uncovers the next one exactly as a rebuild would.
	reports map[string]report.InspectionReport
	view    Compartment
	latest  time.Time
}

type dayNode struct {
	compartments map[int]*compartmentNode
}

// Hierarchy is the train/day, compartment, wheel tree. It is not safe for
// concurrent use; callers serialize access. All query results are copies.
type Hierarchy struct {
	loc   *time.Location
	th    report.Thresholds
	state State

	days  map[TrainDayKey]*dayNode
	index map[string]location
}

// New creates an empty hierarchy that cuts calendar days in loc.
// A nil loc means time.Local.
func New(loc *time.Location, th report.Thresholds) *Hierarchy {
	if loc == nil {
		loc = time.Local
	}
	return &Hierarchy{
		loc:   loc,
		th:    th,
		days:  make(map[TrainDayKey]*dayNode),
		index: make(map[string]location),
	}
}

// State returns Empty until the first report is ingested, Populated afterwards.
func (h *Hierarchy) State() State {
	return h.state
}

// Location returns the time zone used to cut calendar days.
func (h *Hierarchy) Location() *time.Location {
	return h.loc
}

// Thresholds returns the thresholds used to derive wheel conditions.
func (h *Hierarchy) Thresholds() report.Thresholds {
	return h.th
}

// Rebuild discards the tree and recomputes it from reports.
// Reports are assumed valid and unique by id.
func (h *Hierarchy) Rebuild(reports []report.InspectionReport) {
	h.days = make(map[TrainDayKey]*dayNode)
	h.index = make(map[string]location, len(reports))

	touched := make(map[location]struct{})
	for _, r := range reports {
		touched[h.insert(r)] = struct{}{}
	}
	for loc := range touched {
		h.refresh(loc)
	}
	if len(reports) > 0 {
		h.state = Populated
	}
}

// Patch applies one event incrementally. Creates and updates are upserts; an
// update that moves a report to another bucket removes it from the old one.
// Only the touched buckets are recomputed and empty ones are pruned.
func (h *Hierarchy) Patch(ev report.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	old, had := h.index[ev.Report.ID]
	if had {
		h.remove(ev.Report.ID, old)
	}

	if ev.Type == report.EventDeleted {
		if had {
			h.refresh(old)
		}
		return nil
	}

	loc := h.insert(ev.Report)
	if had && old != loc {
		h.refresh(old)
	}
	h.refresh(loc)
	h.state = Populated
	return nil
}

func (h *Hierarchy) insert(r report.InspectionReport) location {
	loc := location{key: KeyFor(r, h.loc), compartment: r.CompartmentNumber}

	day, ok := h.days[loc.key]
	if !ok {
		day = &dayNode{compartments: make(map[int]*compartmentNode)}
		h.days[loc.key] = day
	}
	comp, ok := day.compartments[loc.compartment]
	if !ok {
		comp = &compartmentNode{reports: make(map[string]report.InspectionReport)}
		day.compartments[loc.compartment] = comp
	}
	comp.reports[r.ID] = r.Clone()
	h.index[r.ID] = loc
	return loc
}

func (h *Hierarchy) remove(id string, loc location) {
	delete(h.index, id)
	if day, ok := h.days[loc.key]; ok {
		if comp, ok := day.compartments[loc.compartment]; ok {
			delete(comp.reports, id)
		}
	}
}

// refresh recomputes the compartment at loc, pruning it and its day when they
// have no reports left.
func (h *Hierarchy) refresh(loc location) {
	day, ok := h.days[loc.key]
	if !ok {
		return
	}
	comp, ok := day.compartments[loc.compartment]
	if !ok {
		return
	}
	if len(comp.reports) == 0 {
		delete(day.compartments, loc.compartment)
		if len(day.compartments) == 0 {
			delete(h.days, loc.key)
		}
		return
	}

	// Pick one report per wheel number: the first in canonical order, which
	// is the newest, with the lowest id on equal timestamps.
	winners := make(map[int]report.InspectionReport)
	var latest time.Time
	for _, r := range comp.reports {
		if cur, ok := winners[r.WheelNumber]; !ok || report.Compare(r, cur) < 0 {
			winners[r.WheelNumber] = r
		}
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}

	view := Compartment{Number: loc.compartment, Wheels: make([]Wheel, 0, len(winners))}
	for _, n := range slices.Sorted(maps.Keys(winners)) {
		r := winners[n]
		w := Wheel{Report: r, Derived: report.Derive(r, h.th)}
		if w.Derived.NeedsAttention() {
			view.NeedsAttention = true
		}
		if r.SurfaceFlawed {
			view.Flawed = true
		}
		view.Wheels = append(view.Wheels, w)
	}
	comp.view = view
	comp.latest = latest
}

func (h *Hierarchy) trainDay(key TrainDayKey, day *dayNode) TrainDay {
	td := TrainDay{Key: key, Compartments: make([]Compartment, 0, len(day.compartments))}
	for _, n := range slices.Sorted(maps.Keys(day.compartments)) {
		comp := day.compartments[n]
		td.Compartments = append(td.Compartments, copyCompartment(comp.view))
		if comp.view.NeedsAttention {
			td.NeedsAttention = true
		}
		if comp.view.Flawed {
			td.Flawed = true
		}
		if comp.latest.After(td.Latest) {
			td.Latest = comp.latest
		}
	}
	return td
}

func copyCompartment(c Compartment) Compartment {
	out := c
	out.Wheels = make([]Wheel, len(c.Wheels))
	for i, w := range c.Wheels {
		out.Wheels[i] = Wheel{Report: w.Report.Clone(), Derived: w.Derived}
	}
	return out
}

// compareTrainDays orders newest first, then by ascending train number.
func compareTrainDays(a, b TrainDay) int {
	if c := b.Latest.Compare(a.Latest); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Key.TrainNumber, b.Key.TrainNumber); c != 0 {
		return c
	}
	return cmp.Compare(b.Key.Date, a.Key.Date)
}

// Snapshot returns the full tree, newest train day first.
func (h *Hierarchy) Snapshot() []TrainDay {
	out := make([]TrainDay, 0, len(h.days))
	for key, day := range h.days {
		out = append(out, h.trainDay(key, day))
	}
	slices.SortFunc(out, compareTrainDays)
	return out
}

// ListTrainDays is Snapshot under the name used by consumers.
func (h *Hierarchy) ListTrainDays() []TrainDay {
	return h.Snapshot()
}

// Len returns the number of train days.
func (h *Hierarchy) Len() int {
	return len(h.days)
}

// ListCompartments returns the compartments of one train day.
func (h *Hierarchy) ListCompartments(key TrainDayKey) ([]Compartment, error) {
	day, ok := h.days[key]
	if !ok {
		return nil, fmt.Errorf("train day %s: %w", key, ErrNotFound)
	}
	return h.trainDay(key, day).Compartments, nil
}

// ListWheels returns the wheels of one compartment.
func (h *Hierarchy) ListWheels(key TrainDayKey, compartment int) ([]Wheel, error) {
	day, ok := h.days[key]
	if !ok {
		return nil, fmt.Errorf("train day %s: %w", key, ErrNotFound)
	}
	comp, ok := day.compartments[compartment]
	if !ok {
		return nil, fmt.Errorf("compartment %d of %s: %w", compartment, key, ErrNotFound)
	}
	return copyCompartment(comp.view).Wheels, nil
}
