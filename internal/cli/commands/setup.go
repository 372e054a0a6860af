package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/formdb"
	"github.com/leapstack-labs/zeev/internal/source"
)

// errNoSession is returned when a command runs without the root command's
// configuration loading.
var errNoSession = errors.New("configuration not loaded")

// CommandContext holds the session state shared by commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext returns the configuration and logger loaded by the root
// command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, ok := config.FromContext(cmd.Context())
	if !ok {
		return nil, errNoSession
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(cmd.Context()),
	}, nil
}

// OpenStore returns the forms database client. The connection is opened on
// the first sync; the cleanup function closes it.
func (c *CommandContext) OpenStore() (*formdb.Lazy, func()) {
	store := formdb.NewLazy(c.Cfg.Connection, c.Logger)
	cleanup := func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("failed to close database connection", "err", err)
		}
	}
	return store, cleanup
}

// projectPath turns a user supplied file path into the slash separated path
// relative to the project root that the resolver expects.
func projectPath(root, file string) (string, error) {
	if filepath.IsAbs(file) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(absRoot, file)
		if err != nil {
			return "", err
		}
		file = rel
	}
	rel := filepath.ToSlash(filepath.Clean(file))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the project directory", file)
	}
	return rel, nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func formatCodform(c *source.Codform) string {
	if c == nil {
		return "-"
	}
	return c.String()
}
