package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/config"
)

const projectTemplate = "project"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "init [directory]",
		Aliases: []string{"create"},
		Short:   "Initialize a new zeev project",
		Long: `Initialize a new zeev project with a starter configuration and sources.

This creates:
  - zeev.yaml configuration file
  - src/js/app.js, src/styles/app.scss and src/form/app.html root files
  - config/.env with the variables zeev reads
  - .gitignore`,
		Example: `  # Initialize in current directory
  zeev init

  # Initialize in a new directory
  zeev init my-project

  # Overwrite existing files
  zeev init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	logger := config.GetLogger(cmd.Context())
	w := cmd.OutOrStdout()

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	for _, name := range config.ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil && !force {
			return fmt.Errorf("%s already exists. Use --force to overwrite", name)
		}
	}

	written, skipped, err := copyTemplate(projectTemplate, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range skipped {
		logger.Debug("kept existing file", "file", f)
	}

	for _, f := range written {
		_, _ = fmt.Fprintf(w, "  created %s\n", f)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "zeev project initialized!")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Next steps:")
	_, _ = fmt.Fprintln(w, "  1. Fill in the DATABASE_* variables in config/.env to sync forms")
	_, _ = fmt.Fprintln(w, "  2. Run 'zeev build' to build the root files")
	_, _ = fmt.Fprintln(w, "  3. Run 'zeev dev' to watch and serve ./dist")

	return nil
}
