package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
)

const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// StreamObserver is told about connection state changes and dropped messages.
type StreamObserver interface {
	Connected(up bool)
	Reconnecting(attempt int, delay time.Duration)
	Malformed(err error)
}

type nopObserver struct{}

func (nopObserver) Connected(bool)                  {}
func (nopObserver) Reconnecting(int, time.Duration) {}
func (nopObserver) Malformed(error)                 {}

// Stream consumes the live update channel. After every successful connect it
// calls Resync so that events missed while disconnected are recovered from a
// full fetch; every decoded message is then passed to Handle in arrival order.
type Stream struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	// Resync reloads the full report list. A failure drops the connection
	// and the next attempt retries it.
	Resync func(ctx context.Context) error
	// Handle applies one event. Errors are logged and the stream continues.
	Handle func(ev report.Event) error

	MinBackoff time.Duration
	MaxBackoff time.Duration

	Observer StreamObserver
	Logger   inspect.Logger
	IDs      inspect.IDGenerator
}

// NewStream creates a Stream with default backoff and a bearer token header
// when token is set.
func NewStream(url, token string, resync func(context.Context) error, handle func(report.Event) error, logger inspect.Logger) *Stream {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Stream{
		URL:        url,
		Header:     header,
		Resync:     resync,
		Handle:     handle,
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
		Logger:     logger,
	}
}

// Run connects and consumes messages until ctx is cancelled, reconnecting with
// exponential backoff. It returns ctx.Err().
func (s *Stream) Run(ctx context.Context) error {
	minDelay, maxDelay := s.backoffBounds()
	delay := minDelay
	attempt := 0

	for {
		healthy, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if healthy {
			delay = minDelay
			attempt = 0
		}

		attempt++
		s.observer().Reconnecting(attempt, delay)
		s.logger().Warn("stream disconnected, reconnecting", "url", s.URL, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxDelay)
	}
}

// session runs one connection. healthy reports whether the connection was
// established and resynced, which resets the backoff.
func (s *Stream) session(ctx context.Context) (healthy bool, err error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dialing stream: %s: %w", resp.Status, err)
		}
		return false, fmt.Errorf("dialing stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connID := s.newID()
	s.logger().Info("stream connected", "url", s.URL, "conn", connID)
	s.observer().Connected(true)
	defer s.observer().Connected(false)

	if s.Resync != nil {
		if err := s.Resync(ctx); err != nil {
			return false, fmt.Errorf("resync after connect: %w", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.logger().Info("stream closed by server", "conn", connID, "code", closeErr.Code)
			}
			return true, fmt.Errorf("reading stream: %w", err)
		}

		ev, err := report.DecodeMessage(data)
		if err != nil {
			s.logger().Warn("dropping malformed message", "conn", connID, "error", err)
			s.observer().Malformed(err)
			continue
		}
		if s.Handle == nil {
			continue
		}
		if err := s.Handle(ev); err != nil {
			s.logger().Warn("event not applied", "conn", connID, "type", ev.Type, "id", ev.Report.ID, "error", err)
		}
	}
}

func (s *Stream) backoffBounds() (time.Duration, time.Duration) {
	minDelay, maxDelay := s.MinBackoff, s.MaxBackoff
	if minDelay <= 0 {
		minDelay = DefaultMinBackoff
	}
	if maxDelay < minDelay {
		maxDelay = max(DefaultMaxBackoff, minDelay)
	}
	return minDelay, maxDelay
}

func (s *Stream) observer() StreamObserver {
	if s.Observer == nil {
		return nopObserver{}
	}
	return s.Observer
}

func (s *Stream) logger() inspect.Logger {
	if s.Logger == nil {
		return inspect.NewNopLogger()
	}
	return s.Logger
}

func (s *Stream) newID() string {
	if s.IDs == nil {
		return inspect.UUIDGenerator{}.New()
	}
	return s.IDs.New()
}
