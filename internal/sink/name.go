package sink

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when no document is stored under the name.
var ErrNotFound = errors.New("document not found")

// validateName accepts slash-separated relative names without empty, "." or
// ".." segments, so every backend maps them to the same key layout.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid document name: empty")
	}
	if strings.HasPrefix(name, "/") || path.Clean(name) != name {
		return fmt.Errorf("invalid document name %q", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("invalid document name %q", name)
		}
	}
	return nil
}
