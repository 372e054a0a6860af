package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/source"
)

// NewTargetsCommand creates the targets command.
func NewTargetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the declared build targets",
		Long: `List the build targets declared in the src section of zeev.yaml, per
scope and artifact kind. Root files built by convention are not listed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTargets(cmd)
		},
	}

	return cmd
}

func runTargets(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	scopes := cmdCtx.Cfg.Src.Scopes()
	if len(scopes) == 0 {
		_, _ = fmt.Fprintln(w, "No targets declared. Root files under src/ are built by convention.")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Scope", "Artifact", "Entry", "Output", "Codform"})
	count := 0
	for _, st := range scopes {
		for _, kind := range source.Artifacts {
			for _, target := range st.Targets.Get(kind) {
				t.AppendRow(table.Row{st.Scope.String(), string(kind), target.Entry, target.Output, formatCodform(target.Codform)})
				count++
			}
		}
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d targets)\n", count)
	return nil
}
