package inspect

import "wheelwatch/internal/report"

// Metrics receives counters and gauges from the engine and the live stream.
// Implementations must be safe for concurrent use.
type Metrics interface {
	EventApplied(t report.EventType)
	EventRejected()
	Resynced()
	CollectionSize(reports, trainDays int)

	StreamConnected(connected bool)
	StreamReconnecting()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) EventApplied(report.EventType) {}
func (NopMetrics) EventRejected()                {}
func (NopMetrics) Resynced()                     {}
func (NopMetrics) CollectionSize(int, int)       {}
func (NopMetrics) StreamConnected(bool)          {}
func (NopMetrics) StreamReconnecting()           {}
