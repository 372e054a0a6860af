package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
)

// SassExecutable is the Dart Sass command line compiler.
const SassExecutable = "sass"

// Runner runs an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // G204: sass with configured paths
}

// Style compiles stylesheets with the sass executable.
type Style struct {
	cfg *config.Config
	run Runner
}

// NewStyle returns the sass bundler for cfg. A nil run uses ExecRunner.
func NewStyle(cfg *config.Config, run Runner) *Style {
	if run == nil {
		run = ExecRunner
	}
	return &Style{cfg: cfg, run: run}
}

// Args returns the sass arguments for target.
func (s *Style) Args(target source.BuildTarget) []string {
	return []string{
		s.cfg.Path(filepath.FromSlash(target.Entry)),
		outputPath(s.cfg, target),
		"--style=compressed",
	}
}

// Bundle implements Bundler.
func (s *Style) Bundle(ctx context.Context, target source.BuildTarget) (string, error) {
	args := s.Args(target)
	out := args[1]
	if err := ensureDir(out); err != nil {
		return "", stageError(source.ArtifactCSS, target, StageWrite, err)
	}

	if output, err := s.run(ctx, SassExecutable, args...); err != nil {
		if msg := bytes.TrimSpace(output); len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", stageError(source.ArtifactCSS, target, StageCompile, err)
	}
	return out, nil
}
