// Package inspect is the report aggregation engine: it serializes ingestion
// and aggregation behind one lock, notifies observers of every change and
// answers the queries the CLI renders.
package inspect

import (
	"fmt"
	"sync"
	"time"

	"wheelwatch/internal/hierarchy"
	"wheelwatch/internal/ingest"
	"wheelwatch/internal/report"
)

// Change is delivered to observers after every successful mutation.
type Change struct {
	// Resync is true for a full LoadInitial; Event and Previous are then zero.
	Resync bool

	Event    report.Event
	Previous *report.InspectionReport

	// Changed is false when an event was accepted but left state as it was.
	Changed bool

	Reports   int
	TrainDays int
}

type observer struct {
	id int
	fn func(Change)
}

// Engine owns the report collection and the hierarchy derived from it.
// It is safe for concurrent use. Observers are called outside the state lock,
// one change at a time, in registration order; they may query the engine but
// must not mutate it.
type Engine struct {
	mu     sync.Mutex
	coll   *ingest.Collection
	tree   *hierarchy.Hierarchy
	loaded bool

	observers  []observer
	nextID     int
	notifyLock sync.Mutex

	logger  Logger
	metrics Metrics
	clock   Clock
}

// NewEngine creates an engine that cuts calendar days in loc and derives
// conditions with th.
func NewEngine(loc *time.Location, th report.Thresholds, logger Logger, metrics Metrics, clock Clock) *Engine {
	return &Engine{
		coll:    ingest.NewCollection(),
		tree:    hierarchy.New(loc, th),
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// LoadInitial replaces all state with reports. It is always allowed and is the
// way to restore ground truth after a reconnect.
func (e *Engine) LoadInitial(reports []report.InspectionReport) error {
	e.mu.Lock()
	if err := e.coll.LoadInitial(reports); err != nil {
		e.mu.Unlock()
		e.metrics.EventRejected()
		e.logger.Warn("rejected initial load", "reports", len(reports), "error", err)
		return fmt.Errorf("loading reports: %w", err)
	}
	e.tree.Rebuild(e.coll.Reports())
	e.loaded = true

	change := Change{Resync: true, Changed: true, Reports: e.coll.Len(), TrainDays: e.tree.Len()}
	e.metrics.Resynced()
	e.metrics.CollectionSize(change.Reports, change.TrainDays)
	e.logger.Info("loaded reports", "reports", change.Reports, "train_days", change.TrainDays)

	e.publish(change)
	return nil
}

// ApplyEvent applies one live event. A malformed event is rejected with a
// *report.MalformedEventError and state is left unchanged.
func (e *Engine) ApplyEvent(ev report.Event) error {
	e.mu.Lock()
	ic, err := e.coll.ApplyEvent(ev)
	if err != nil {
		e.mu.Unlock()
		e.metrics.EventRejected()
		e.logger.Warn("rejected event", "type", string(ev.Type), "id", ev.Report.ID, "error", err)
		return err
	}
	if ic.Changed {
		if err := e.tree.Patch(ev); err != nil {
			// The collection accepted the event, so the tree cannot reject it
			// for being malformed. Fall back to a rebuild to stay consistent.
			e.logger.Error("patch failed, rebuilding", "id", ev.Report.ID, "error", err)
			e.tree.Rebuild(e.coll.Reports())
		}
	}
	e.loaded = true

	change := Change{
		Event:     ev,
		Previous:  ic.Previous,
		Changed:   ic.Changed,
		Reports:   e.coll.Len(),
		TrainDays: e.tree.Len(),
	}
	e.metrics.EventApplied(ev.Type)
	e.metrics.CollectionSize(change.Reports, change.TrainDays)
	e.logger.Debug("applied event", "type", string(ev.Type), "id", ev.Report.ID, "changed", ic.Changed)

	e.publish(change)
	return nil
}

// publish releases e.mu and delivers change to the observers registered at
// the time of the mutation. Callers hold e.mu.
func (e *Engine) publish(change Change) {
	observers := make([]observer, len(e.observers))
	copy(observers, e.observers)

	// Take the notify lock before releasing the state lock so changes are
	// delivered in the order they were applied.
	e.notifyLock.Lock()
	e.mu.Unlock()
	defer e.notifyLock.Unlock()

	for _, o := range observers {
		o.fn(change)
	}
}

// Subscribe registers fn to be called after every successful mutation and
// returns a function that removes it. Calling the returned function more than
// once is harmless.
func (e *Engine) Subscribe(fn func(Change)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.observers = append(e.observers, observer{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// Derive computes the display fields of r with the engine's thresholds.
func (e *Engine) Derive(r report.InspectionReport) report.Derived {
	e.mu.Lock()
	defer e.mu.Unlock()
	return report.Derive(r, e.tree.Thresholds())
}

// Loaded reports whether a load or event has been applied yet.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// State returns the hierarchy state: Empty until a report was ingested.
func (e *Engine) State() hierarchy.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.State()
}

// Reports returns every report in canonical order.
func (e *Engine) Reports() ([]report.InspectionReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, report.ErrNotLoaded
	}
	return e.coll.Reports(), nil
}

// Get returns one report by id.
func (e *Engine) Get(id string) (report.InspectionReport, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return report.InspectionReport{}, false, report.ErrNotLoaded
	}
	r, ok := e.coll.Get(id)
	return r, ok, nil
}

// ListTrainDays returns all train days, newest first.
func (e *Engine) ListTrainDays() ([]hierarchy.TrainDay, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, report.ErrNotLoaded
	}
	return e.tree.ListTrainDays(), nil
}

// ListCompartments returns the compartments of one train day.
func (e *Engine) ListCompartments(key hierarchy.TrainDayKey) ([]hierarchy.Compartment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, report.ErrNotLoaded
	}
	return e.tree.ListCompartments(key)
}

// ListWheels returns the wheels of one compartment.
func (e *Engine) ListWheels(key hierarchy.TrainDayKey, compartment int) ([]hierarchy.Wheel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, report.ErrNotLoaded
	}
	return e.tree.ListWheels(key, compartment)
}

// LatestSummary summarizes the newest train day. ok is false when loaded but
// there are no reports.
func (e *Engine) LatestSummary() (s hierarchy.Summary, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return hierarchy.Summary{}, false, report.ErrNotLoaded
	}
	s, ok = e.tree.LatestSummary()
	return s, ok, nil
}
