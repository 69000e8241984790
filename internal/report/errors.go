package report

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent matches every *MalformedEventError via errors.Is.
var ErrMalformedEvent = errors.New("malformed event")

// ErrNotLoaded is returned by queries issued before any report has been loaded.
// It is a normal startup condition, not an anomaly.
var ErrNotLoaded = errors.New("reports not yet loaded")

// MalformedEventError describes an event or record that is missing a required field.
// The event is rejected and state is left unchanged.
type MalformedEventError struct {
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s %s", e.Field, e.Reason)
}

func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}
