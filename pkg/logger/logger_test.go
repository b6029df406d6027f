package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dcms/dentflow/internal/config"
)

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dentflow.log")
	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputPath: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("slot query served")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "slot query served") {
		t.Errorf("log file missing entry: %s", data)
	}
}
