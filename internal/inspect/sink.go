package inspect

import "io"

// Sink stores exported report documents.
// All operations use io.Reader/io.Writer so documents are streamed rather
// than held in memory twice.
type Sink interface {
	// Put stores a document under name, replacing any previous one.
	// size is the number of bytes that will be read from r.
	Put(name string, r io.Reader, size int64) error

	// Get retrieves the document stored under name and writes it to w.
	Get(name string, w io.Writer) error

	// List returns the names of stored documents that start with prefix,
	// in lexical order.
	List(prefix string) ([]string, error)

	// ValidateSetup verifies that the sink is accessible and properly configured.
	ValidateSetup() error
}
