package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/bundle"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every target once",
		Long: `Build every declared target, plus the root files found under src/ that
zeev builds by convention (src/app.js, src/styles/style.scss, ...).

Set NODE_ENV=production to minify the JavaScript bundles.`,
		Example: `  # Build everything
  zeev build

  # Production build into another directory
  NODE_ENV=production zeev build --out-dir ./public`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd)
		},
	}

	return cmd
}

func runBuild(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	store, cleanup := cmdCtx.OpenStore()
	defer cleanup()

	start := time.Now()
	dispatcher := bundle.NewDispatcher(cmdCtx.Cfg, store, cmdCtx.Logger)
	if err := dispatcher.BuildAll(cmd.Context()); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	cmdCtx.Logger.Info("build finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
