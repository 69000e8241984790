package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wheelwatch/internal/report"
)

// RecordJSON encodes r the way the backend does.
func RecordJSON(r report.InspectionReport) string {
	rec := map[string]any{
		"_id":               r.ID,
		"trainNumber":       r.TrainNumber,
		"compartmentNumber": r.CompartmentNumber,
		"wheelNumber":       r.WheelNumber,
		"status":            report.SurfaceStatus(r.SurfaceFlawed),
		"timestamp":         r.Timestamp.UTC().Format(time.RFC3339),
	}
	if r.WheelDiameterMm != nil {
		rec["wheel_diameter"] = *r.WheelDiameterMm
	} else {
		rec["wheel_diameter"] = nil
	}
	if r.ImagePath != "" {
		rec["image_path"] = r.ImagePath
	}
	data, _ := json.Marshal(rec)
	return string(data)
}

// MessageJSON encodes a live channel message with the given wire type name.
func MessageJSON(typ string, r report.InspectionReport) string {
	return `{"type":"` + typ + `","data":` + RecordJSON(r) + `}`
}

// FakeBackend serves the REST endpoints and the live channel from memory.
// The live channel is served at "/" like the real backend.
type FakeBackend struct {
	Server *httptest.Server
	Token  string

	mu        sync.Mutex
	records   []string
	deleted   []string
	fetches   int
	failFetch int
	conns     map[*websocket.Conn]struct{}
	connected chan struct{}
	upgrader  websocket.Upgrader
}

// NewFakeBackend starts a backend that is shut down when the test ends.
// A non-empty token is required as a bearer token on every request.
func NewFakeBackend(t *testing.T, token string) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		Token:     token,
		conns:     make(map[*websocket.Conn]struct{}),
		connected: make(chan struct{}, 64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reports", b.handleList)
	mux.HandleFunc("DELETE /api/reports/{id}", b.handleDelete)
	mux.HandleFunc("GET /{$}", b.handleStream)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		b.DropConnections()
		b.Server.Close()
	})
	return b
}

// URL returns the REST base URL.
func (b *FakeBackend) URL() string {
	return b.Server.URL
}

// StreamURL returns the WebSocket URL of the live channel.
func (b *FakeBackend) StreamURL() string {
	return "ws" + strings.TrimPrefix(b.Server.URL, "http") + "/"
}

// SetReports replaces the list returned by the bulk fetch.
func (b *FakeBackend) SetReports(reports ...report.InspectionReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = b.records[:0]
	for _, r := range reports {
		b.records = append(b.records, RecordJSON(r))
	}
}

// FailFetches makes the next n bulk fetches fail with 500.
func (b *FakeBackend) FailFetches(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFetch = n
}

// Fetches returns the number of bulk fetch requests served.
func (b *FakeBackend) Fetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

// Deleted returns the ids removed through DELETE requests.
func (b *FakeBackend) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// Send writes a text message to every connected client.
func (b *FakeBackend) Send(t *testing.T, msg string) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Errorf("writing to stream: %v", err)
		}
	}
}

// DropConnections closes every live connection without a close handshake.
func (b *FakeBackend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		c.Close()
		delete(b.conns, c)
	}
}

// WaitConnected blocks until a client connects or the timeout expires.
func (b *FakeBackend) WaitConnected(t *testing.T) {
	t.Helper()
	select {
	case <-b.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream connection")
	}
}

func (b *FakeBackend) authorized(w http.ResponseWriter, r *http.Request) bool {
	if b.Token == "" || r.Header.Get("Authorization") == "Bearer "+b.Token {
		return true
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
	return false
}

func (b *FakeBackend) handleList(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	b.mu.Lock()
	b.fetches++
	if b.failFetch > 0 {
		b.failFetch--
		b.mu.Unlock()
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	body := "[" + strings.Join(b.records, ",") + "]"
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (b *FakeBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, rec := range b.records {
		var v struct {
			ID string `json:"_id"`
		}
		json.Unmarshal([]byte(rec), &v)
		if v.ID == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			b.deleted = append(b.deleted, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (b *FakeBackend) handleStream(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
	select {
	case b.connected <- struct{}{}:
	default:
	}

	// Drain control frames until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			b.mu.Lock()
			delete(b.conns, conn)
			b.mu.Unlock()
			conn.Close()
			return
		}
	}
}
