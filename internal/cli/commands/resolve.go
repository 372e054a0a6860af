package commands

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/source"
	"github.com/leapstack-labs/zeev/internal/watch"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Show what a change to a file would rebuild",
		Long: `Resolve a source file the way the watcher does and list the targets a
change to it would rebuild, with the database key each form would sync to in
the running environment (NODE_ENV).`,
		Example: `  # A project file
  zeev resolve src/portal/components/menu.js

  # A zero-config root file
  zeev resolve src/styles/style.scss`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args[0])
		},
	}

	return cmd
}

func runResolve(cmd *cobra.Command, file string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	w := cmd.OutOrStdout()

	rel, err := projectPath(cfg.Root, file)
	if err != nil {
		return err
	}

	kind, ok := watch.New(cfg.Root, cfg.Watch, cmdCtx.Logger).Route(rel)
	if !ok {
		_, _ = fmt.Fprintf(w, "%s is not watched\n", rel)
		return nil
	}

	targets := source.Resolve(kind, rel, cfg.Src)
	if len(targets) == 0 {
		_, _ = fmt.Fprintf(w, "%s (%s) has no build target\n", rel, kind)
		return nil
	}

	t := newTable(w)
	t.SetTitle("%s (%s)", rel, kind)
	t.AppendHeader(table.Row{"Entry", "Output", "Codform", "Sync"})
	for _, target := range targets {
		t.AppendRow(table.Row{target.Entry, target.Output, formatCodform(target.Codform), syncColumn(target, cfg.Environment)})
	}
	t.Render()
	return nil
}

// syncColumn describes where a target's compiled form is synced to.
func syncColumn(target source.BuildTarget, env string) string {
	code, ok, err := target.SyncCode(env)
	switch {
	case errors.Is(err, source.ErrCodformUnresolved):
		return "unresolved"
	case err != nil:
		return err.Error()
	case !ok:
		return "-"
	default:
		return fmt.Sprintf("CodForm %d", code)
	}
}
