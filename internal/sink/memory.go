package sink

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"wheelwatch/internal/inspect"
)

// MemorySink is an in-memory implementation of the Sink interface, useful for
// testing. This implementation is safe for concurrent use.
type MemorySink struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemorySink creates a new in-memory sink with the given name.
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{
		name:    name,
		objects: make(map[string][]byte),
	}
}

// Put stores a document under name.
func (m *MemorySink) Put(name string, r io.Reader, size int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[name] = data
	return nil
}

// Get retrieves the document stored under name.
func (m *MemorySink) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("document %q: %w", name, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return nil
}

// List returns stored names with the given prefix in lexical order.
func (m *MemorySink) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup always succeeds for the in-memory sink.
func (m *MemorySink) ValidateSetup() error {
	return nil
}

// Compile-time check that MemorySink implements inspect.Sink interface
var _ inspect.Sink = (*MemorySink)(nil)
