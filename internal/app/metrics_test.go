package app

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"wheelwatch/internal/report"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	m.EventApplied(report.EventCreated)
	m.EventApplied(report.EventCreated)
	m.EventApplied(report.EventDeleted)
	m.EventRejected()
	m.Resynced()
	m.CollectionSize(12, 3)
	m.StreamConnected(true)

	checks := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"created", m.applied.WithLabelValues("created"), 2},
		{"deleted", m.applied.WithLabelValues("deleted"), 1},
		{"rejected", m.rejected, 1},
		{"resyncs", m.resyncs, 1},
		{"reports", m.reports, 12},
		{"train days", m.trainDays, 3},
		{"connected", m.connected, 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.collector); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	m.StreamConnected(false)
	if got := testutil.ToFloat64(m.connected); got != 0 {
		t.Errorf("connected after disconnect = %v, want 0", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 8 {
		t.Errorf("GatherAndCount() = %d, %v, want 8 series", n, err)
	}
}

func TestStreamObserver(t *testing.T) {
	m := NewPromMetrics(prometheus.NewRegistry())
	o := streamObserver{metrics: m}

	o.Connected(true)
	o.Reconnecting(1, time.Second)
	o.Reconnecting(2, 2*time.Second)
	o.Malformed(errors.New("bad json"))

	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reconnects); got != 2 {
		t.Errorf("reconnects = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}
