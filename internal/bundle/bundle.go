// Package bundle compiles resolved build targets into the output directory:
// JavaScript with esbuild, styles with the sass executable and forms with the
// form compiler, optionally syncing forms to the Zeev database.
package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
)

// Build stages reported in errors and logs.
const (
	StageCompile = "compile"
	StageWrite   = "write"
	StageSync    = "sync"
)

// Bundler builds one target and returns the path of the written output.
type Bundler interface {
	Bundle(ctx context.Context, target source.BuildTarget) (string, error)
}

// Error describes a failed build of one target.
type Error struct {
	Artifact source.Artifact
	Entry    string
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s failed: %v", e.Artifact, e.Entry, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageError(kind source.Artifact, target source.BuildTarget, stage string, err error) error {
	return &Error{Artifact: kind, Entry: target.Entry, Stage: stage, Err: err}
}

// outputPath returns where a target's output is written.
func outputPath(cfg *config.Config, target source.BuildTarget) string {
	return cfg.Path(filepath.Join(cfg.OutDir, filepath.FromSlash(target.Output)))
}

func ensureDir(file string) error {
	return os.MkdirAll(filepath.Dir(file), 0750)
}
