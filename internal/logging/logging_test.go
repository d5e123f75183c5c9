package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New("debug", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Named("chassis").Debug("tick")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	for _, want := range []string{"DEBUG", "chassis", "tick"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New("warn", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Errorf("unexpected log output %q", data)
	}
}
