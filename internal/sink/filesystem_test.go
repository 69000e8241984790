package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemSink(t *testing.T) {
	s, err := NewFileSystemSink(filepath.Join(t.TempDir(), "exports"))
	if err != nil {
		t.Fatalf("NewFileSystemSink() error = %v", err)
	}
	exerciseSink(t, s)
}

func TestFileSystemSink_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemSink(root)
	if err != nil {
		t.Fatalf("NewFileSystemSink() error = %v", err)
	}

	if err := s.Put("client/doc.json", strings.NewReader("{}"), 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "client", "doc.json"))
	if err != nil {
		t.Fatalf("document not written to expected path: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("content = %q, want %q", data, "{}")
	}
}

func TestFileSystemSink_FailedWriteLeavesNoFile(t *testing.T) {
	root := t.TempDir()
	s, _ := NewFileSystemSink(root)

	s.Put("client/doc.json", strings.NewReader("abc"), 99)

	entries, err := os.ReadDir(filepath.Join(root, "client"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory has %d entries after failed write, want 0", len(entries))
	}
	names, _ := s.List("")
	if len(names) != 0 {
		t.Errorf("List() = %v, want empty", names)
	}
}

func TestFileSystemSink_ValidateSetup(t *testing.T) {
	t.Run("root removed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "gone")
		s, _ := NewFileSystemSink(root)
		os.RemoveAll(root)

		if err := s.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		dir := t.TempDir()
		s, _ := NewFileSystemSink(dir)
		file := filepath.Join(dir, "file")
		os.WriteFile(file, []byte("x"), 0644)
		s.root = file

		if err := s.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for file root")
		}
	})
}
