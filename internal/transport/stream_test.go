package transport_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wheelwatch/internal/report"
	"wheelwatch/internal/testutil"
	"wheelwatch/internal/transport"
)

type recorder struct {
	mu           sync.Mutex
	events       []report.Event
	resyncs      int
	states       []bool
	delays       []time.Duration
	malformed    int
	resyncErr    error
	failHandling bool
}

func (r *recorder) resync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resyncs++
	return r.resyncErr
}

func (r *recorder) handle(ev report.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.failHandling {
		return errors.New("rejected")
	}
	return nil
}

func (r *recorder) Connected(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, up)
}

func (r *recorder) Reconnecting(attempt int, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delay)
}

func (r *recorder) Malformed(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed++
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		events:    append([]report.Event(nil), r.events...),
		resyncs:   r.resyncs,
		states:    append([]bool(nil), r.states...),
		delays:    append([]time.Duration(nil), r.delays...),
		malformed: r.malformed,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startStream(t *testing.T, backend *testutil.FakeBackend, rec *recorder, token string) (cancel func(), done <-chan error) {
	t.Helper()
	s := transport.NewStream(backend.StreamURL(), token, rec.resync, rec.handle, nil)
	s.MinBackoff = 10 * time.Millisecond
	s.MaxBackoff = 40 * time.Millisecond
	s.Observer = rec
	s.IDs = testutil.NewStubIDGenerator()

	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	t.Cleanup(stop)
	return stop, errc
}

func TestStream_DeliversEventsInOrder(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend(t, "tok")
	rec := &recorder{}
	cancel, done := startStream(t, backend, rec, "tok")

	backend.WaitConnected(t)
	waitFor(t, "resync", func() bool { return rec.snapshot().resyncs == 1 })

	r1 := testutil.NewReport("r1").Build()
	backend.Send(t, testutil.MessageJSON("new_report", r1))
	backend.Send(t, testutil.MessageJSON("updated_report", r1))
	backend.Send(t, `{"type":"deleted_report","data":"r1"}`)

	waitFor(t, "three events", func() bool { return len(rec.snapshot().events) == 3 })
	got := rec.snapshot().events
	want := []report.EventType{report.EventCreated, report.EventUpdated, report.EventDeleted}
	for i, ev := range got {
		if ev.Type != want[i] || ev.Report.ID != "r1" {
			t.Errorf("event %d = %s %q, want %s r1", i, ev.Type, ev.Report.ID, want[i])
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	states := rec.snapshot().states
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("connection states = %v, want [true false]", states)
	}
}

func TestStream_MalformedMessagesAreSkipped(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend(t, "")
	rec := &recorder{failHandling: true}
	startStream(t, backend, rec, "")
	backend.WaitConnected(t)
	waitFor(t, "resync", func() bool { return rec.snapshot().resyncs == 1 })

	backend.Send(t, `not json`)
	backend.Send(t, `{"type":"exploded","data":{}}`)
	backend.Send(t, `{"type":"created","data":{"_id":"x","trainNumber":"abc"}}`)
	backend.Send(t, testutil.MessageJSON("created", testutil.NewReport("ok").Build()))
	backend.Send(t, testutil.MessageJSON("created", testutil.NewReport("ok2").Build()))

	// Handler errors do not stop the stream either.
	waitFor(t, "valid events", func() bool { return len(rec.snapshot().events) == 2 })
	snap := rec.snapshot()
	if snap.malformed != 3 {
		t.Errorf("malformed = %d, want 3", snap.malformed)
	}
	if snap.events[0].Report.ID != "ok" || snap.events[1].Report.ID != "ok2" {
		t.Errorf("events = %+v", snap.events)
	}
}

func TestStream_ReconnectsAndResyncs(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend(t, "")
	rec := &recorder{}
	startStream(t, backend, rec, "")

	backend.WaitConnected(t)
	waitFor(t, "first resync", func() bool { return rec.snapshot().resyncs == 1 })

	backend.DropConnections()
	backend.WaitConnected(t)
	waitFor(t, "second resync", func() bool { return rec.snapshot().resyncs == 2 })

	snap := rec.snapshot()
	if len(snap.delays) == 0 || snap.delays[0] != 10*time.Millisecond {
		t.Errorf("first reconnect delay = %v, want 10ms", snap.delays)
	}

	// Events after reconnect still flow.
	backend.Send(t, testutil.MessageJSON("created", testutil.NewReport("after").Build()))
	waitFor(t, "event after reconnect", func() bool { return len(rec.snapshot().events) == 1 })
}

func TestStream_BackoffGrowsWhileUnreachable(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend(t, "tok")
	rec := &recorder{}
	// Wrong token: every dial is refused by the handshake.
	startStream(t, backend, rec, "wrong")

	waitFor(t, "four attempts", func() bool { return len(rec.snapshot().delays) >= 4 })
	delays := rec.snapshot().delays[:4]
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delays = %v, want %v", delays, want)
			break
		}
	}
	if got := rec.snapshot().resyncs; got != 0 {
		t.Errorf("resyncs = %d, want 0 without a connection", got)
	}
}

func TestStream_ResyncFailureReconnects(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend(t, "")
	rec := &recorder{resyncErr: errors.New("fetch failed")}
	startStream(t, backend, rec, "")

	waitFor(t, "repeated resync attempts", func() bool { return rec.snapshot().resyncs >= 2 })
	if got := rec.snapshot().delays; len(got) < 1 {
		t.Errorf("expected a reconnect after failed resync, delays = %v", got)
	}
}
