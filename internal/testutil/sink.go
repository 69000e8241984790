package testutil

import (
	"wheelwatch/internal/encryption"
	"wheelwatch/internal/inspect"
	"wheelwatch/internal/sink"
)

// NewTestSink creates a new in-memory export sink for testing.
func NewTestSink() *sink.MemorySink {
	return sink.NewMemorySink("test-sink")
}

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() inspect.Encryptor {
	return encryption.NewTestEncryptor()
}
