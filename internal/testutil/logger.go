// Package testutil provides helpers shared by zeev tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/zeev/internal/logging"
)

// NewTestLogger returns a debug logger that writes through t.Log, so output
// only shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return logging.New(testWriter{t}, logging.Options{Level: slog.LevelDebug})
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// WriteFiles creates files under dir from a path → content map. Paths are
// slash separated; parent directories are created as needed.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}
