// Package ingest maintains the authoritative in-memory report collection fed
// by one bulk load and an unordered stream of point events.
package ingest

import (
	"fmt"

	"wheelwatch/internal/report"
)

// Change describes the effect of one applied event.
type Change struct {
	Event report.Event

	// Previous is the record held for the event's id before it was applied,
	// nil when none existed.
	Previous *report.InspectionReport

	// Changed is false when the event left the collection as it was, such as
	// a delete for an unknown id or a create repeating the stored record.
	Changed bool
}

// Collection is a deduplicated set of reports kept in canonical order.
// It is not safe for concurrent use; callers serialize access.
type Collection struct {
	byID   map[string]report.InspectionReport
	sorted []report.InspectionReport

	// updated holds ids whose stored record was written by an update event.
	// A create for such an id arrived late and must not overwrite it.
	updated map[string]bool
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		byID:    make(map[string]report.InspectionReport),
		updated: make(map[string]bool),
	}
}

// LoadInitial replaces the entire collection. It is always allowed and acts as
// a full resync. When an id appears more than once the last occurrence wins.
// If any record is invalid the load is rejected and the collection is unchanged.
func (c *Collection) LoadInitial(reports []report.InspectionReport) error {
	byID := make(map[string]report.InspectionReport, len(reports))
	for i, r := range reports {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		byID[r.ID] = r.Clone()
	}

	c.byID = byID
	c.updated = make(map[string]bool)
	c.resort()
	return nil
}

// ApplyEvent applies one live event. Creates and updates are upserts, deletes
// of unknown ids are no-ops. A create for an id already written by an update
// is stale and ignored, so an update delivered before its create converges to
// the causal result. A malformed event is rejected without touching the
// collection.
func (c *Collection) ApplyEvent(ev report.Event) (Change, error) {
	if err := ev.Validate(); err != nil {
		return Change{}, err
	}

	change := Change{Event: ev}
	prev, exists := c.byID[ev.Report.ID]
	if exists {
		p := prev.Clone()
		change.Previous = &p
	}

	switch ev.Type {
	case report.EventCreated:
		if exists && (c.updated[ev.Report.ID] || prev.Equal(ev.Report)) {
			return change, nil
		}
		c.byID[ev.Report.ID] = ev.Report.Clone()
	case report.EventUpdated:
		c.updated[ev.Report.ID] = true
		if exists && prev.Equal(ev.Report) {
			return change, nil
		}
		c.byID[ev.Report.ID] = ev.Report.Clone()
	case report.EventDeleted:
		delete(c.updated, ev.Report.ID)
		if !exists {
			return change, nil
		}
		delete(c.byID, ev.Report.ID)
	}

	change.Changed = true
	c.resort()
	return change, nil
}

// Reports returns a copy of the collection in canonical order.
func (c *Collection) Reports() []report.InspectionReport {
	out := make([]report.InspectionReport, len(c.sorted))
	for i, r := range c.sorted {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the report with the given id.
func (c *Collection) Get(id string) (report.InspectionReport, bool) {
	r, ok := c.byID[id]
	if !ok {
		return report.InspectionReport{}, false
	}
	return r.Clone(), true
}

// Len returns the number of reports held.
func (c *Collection) Len() int {
	return len(c.byID)
}

// Latest returns the first report in canonical order.
func (c *Collection) Latest() (report.InspectionReport, bool) {
	if len(c.sorted) == 0 {
		return report.InspectionReport{}, false
	}
	return c.sorted[0].Clone(), true
}

func (c *Collection) resort() {
	sorted := make([]report.InspectionReport, 0, len(c.byID))
	for _, r := range c.byID {
		sorted = append(sorted, r)
	}
	report.SortCanonical(sorted)
	c.sorted = sorted
}
