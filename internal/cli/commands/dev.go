package commands

import (
	"context"
	"errors"
	"io/fs"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/zeev/internal/bundle"
	"github.com/leapstack-labs/zeev/internal/server"
	"github.com/leapstack-labs/zeev/internal/source"
	"github.com/leapstack-labs/zeev/internal/watch"
)

// NewDevCommand creates the dev command.
func NewDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dev",
		Aliases: []string{"serve"},
		Short:   "Watch sources and rebuild on change",
		Long: `Watch src/ and rebuild every target a changed file belongs to.

While watching, zeev can also run:
  - a static server for the output directory with live reload (server)
  - a JSON mock API backed by a file (mocks, only when configured)

Forms that declare a codform are synced to the forms database after each
build. The connection settings are read from DATABASE_* variables.`,
		Example: `  # Watch with the settings from zeev.yaml
  zeev dev

  # Serve the output on another port
  zeev dev --port 3000

  # Watch a project in another directory with debug logs
  zeev dev -C ../portal -v`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDev(cmd)
		},
	}

	return cmd
}

func runDev(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, logger := cmdCtx.Cfg, cmdCtx.Logger

	store, cleanup := cmdCtx.OpenStore()
	defer cleanup()

	dispatcher := bundle.NewDispatcher(cfg, store, logger)
	watcher := watch.New(cfg.Root, cfg.Watch, logger)

	eg, ctx := errgroup.WithContext(cmd.Context())

	if cfg.Server.Enabled {
		static := server.NewStatic(cfg.Path(cfg.OutDir), cfg.Server, nil, logger)
		dispatcher.OnBuilt = func(_ source.Artifact, output string) {
			static.Reload(output)
		}
		eg.Go(func() error { return static.Serve(ctx) })
	}

	if cfg.MocksRequested() {
		mock, err := server.LoadMock(cfg.Path(cfg.Mocks.File), cfg.Mocks, logger)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("can't find mock file, mock server not started", "file", cfg.Mocks.File)
		case err != nil:
			return err
		default:
			eg.Go(func() error { return mock.Serve(ctx) })
		}
	}

	eg.Go(func() error {
		return watcher.Run(ctx, func(ctx context.Context, ev watch.Event) {
			// Failures are logged by the dispatcher; the session keeps watching.
			_ = dispatcher.HandleChange(ctx, ev.Kind, ev.Path)
		})
	})

	return eg.Wait()
}
