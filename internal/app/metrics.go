package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
	"wheelwatch/internal/transport"
)

// PromMetrics exports engine and stream activity to Prometheus.
type PromMetrics struct {
	applied    *prometheus.CounterVec
	rejected   prometheus.Counter
	resyncs    prometheus.Counter
	reconnects prometheus.Counter
	reports    prometheus.Gauge
	trainDays  prometheus.Gauge
	connected  prometheus.Gauge
}

var _ inspect.Metrics = (*PromMetrics)(nil)

// NewPromMetrics creates the collectors and registers them on reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wheelwatch_events_applied_total",
			Help: "Live events accepted by the engine, by event type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wheelwatch_events_rejected_total",
			Help: "Malformed events and loads that were rejected.",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wheelwatch_resyncs_total",
			Help: "Full report list loads.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wheelwatch_stream_reconnects_total",
			Help: "Reconnect attempts of the live stream.",
		}),
		reports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wheelwatch_reports",
			Help: "Reports currently held.",
		}),
		trainDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wheelwatch_train_days",
			Help: "Train days currently in the hierarchy.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wheelwatch_stream_connected",
			Help: "1 while the live stream is connected.",
		}),
	}
	reg.MustRegister(m.applied, m.rejected, m.resyncs, m.reconnects, m.reports, m.trainDays, m.connected)
	return m
}

func (m *PromMetrics) EventApplied(t report.EventType) { m.applied.WithLabelValues(string(t)).Inc() }
func (m *PromMetrics) EventRejected()                  { m.rejected.Inc() }
func (m *PromMetrics) Resynced()                       { m.resyncs.Inc() }
func (m *PromMetrics) StreamReconnecting()             { m.reconnects.Inc() }

func (m *PromMetrics) CollectionSize(reports, trainDays int) {
	m.reports.Set(float64(reports))
	m.trainDays.Set(float64(trainDays))
}

func (m *PromMetrics) StreamConnected(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// streamObserver forwards stream state to metrics. Malformed messages never
// reach the engine, so they are counted as rejections here.
type streamObserver struct {
	metrics inspect.Metrics
}

var _ transport.StreamObserver = streamObserver{}

func (o streamObserver) Connected(up bool) { o.metrics.StreamConnected(up) }
func (o streamObserver) Malformed(error)   { o.metrics.EventRejected() }

func (o streamObserver) Reconnecting(int, time.Duration) {
	o.metrics.StreamReconnecting()
}
