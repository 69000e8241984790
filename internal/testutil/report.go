package testutil

import (
	"time"

	"wheelwatch/internal/report"
)

// Day is 2024-06-15 10:00:00 UTC, the default inspection time of built reports.
var Day = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

// ReportBuilder builds inspection reports for tests. The zero configuration is
// train 1, compartment 1, wheel 1 at Day with a good diameter and no flaw.
type ReportBuilder struct {
	r report.InspectionReport
}

// NewReport starts a report with the given id.
func NewReport(id string) *ReportBuilder {
	return &ReportBuilder{r: report.InspectionReport{
		ID:                id,
		TrainNumber:       1,
		CompartmentNumber: 1,
		WheelNumber:       1,
		WheelDiameterMm:   report.Diameter(640),
		Timestamp:         Day,
	}}
}

// At places the wheel at train/compartment/wheel.
func (b *ReportBuilder) At(train, compartment, wheel int) *ReportBuilder {
	b.r.TrainNumber = train
	b.r.CompartmentNumber = compartment
	b.r.WheelNumber = wheel
	return b
}

// On sets the inspection timestamp.
func (b *ReportBuilder) On(ts time.Time) *ReportBuilder {
	b.r.Timestamp = ts
	return b
}

// Diameter sets a measured diameter in millimeters.
func (b *ReportBuilder) Diameter(mm float64) *ReportBuilder {
	b.r.WheelDiameterMm = report.Diameter(mm)
	return b
}

// NoDiameter clears the diameter so the condition is UNKNOWN.
func (b *ReportBuilder) NoDiameter() *ReportBuilder {
	b.r.WheelDiameterMm = nil
	return b
}

// Flawed marks a surface flaw.
func (b *ReportBuilder) Flawed() *ReportBuilder {
	b.r.SurfaceFlawed = true
	return b
}

// Image sets the relative image path.
func (b *ReportBuilder) Image(path string) *ReportBuilder {
	b.r.ImagePath = path
	return b
}

// Build returns the report.
func (b *ReportBuilder) Build() report.InspectionReport {
	return b.r.Clone()
}

// Created wraps r in a created event.
func Created(r report.InspectionReport) report.Event {
	return report.Event{Type: report.EventCreated, Report: r}
}

// Updated wraps r in an updated event.
func Updated(r report.InspectionReport) report.Event {
	return report.Event{Type: report.EventUpdated, Report: r}
}

// Deleted builds a delete event for id.
func Deleted(id string) report.Event {
	return report.Event{Type: report.EventDeleted, Report: report.InspectionReport{ID: id}}
}
