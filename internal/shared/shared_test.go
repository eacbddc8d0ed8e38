package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	if logger == nil {
		t.Fatal("expected logger to be created")
	}

	logger.Info("hello")
	if buf.Len() == 0 {
		t.Error("expected log output to be written")
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "spoton.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}

	logger.Info("hello")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := GenerateID()
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
