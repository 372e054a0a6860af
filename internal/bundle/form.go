package bundle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/form"
	"github.com/leapstack-labs/zeev/internal/formdb"
	"github.com/leapstack-labs/zeev/internal/source"
)

// LayoutStore persists compiled form HTML. *formdb.Client and *formdb.Lazy
// implement it.
type LayoutStore interface {
	UpdateLayout(ctx context.Context, column formdb.Column, codform int, html string) error
}

// Form compiles HTML forms, writes them to the output directory and, when the
// target declares a codform, stores them in the database.
type Form struct {
	cfg      *config.Config
	compiler *form.Compiler
	store    LayoutStore
	logger   *slog.Logger
}

// NewForm returns the form bundler. Includes resolve against <root>/src.
func NewForm(cfg *config.Config, store LayoutStore, logger *slog.Logger) *Form {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Form{
		cfg:      cfg,
		compiler: form.NewCompiler(cfg.Path("src"), cfg.Environment),
		store:    store,
		logger:   logger,
	}
}

// Bundle implements Bundler.
func (f *Form) Bundle(ctx context.Context, target source.BuildTarget) (string, error) {
	html, err := f.compiler.CompileFile(f.cfg.Path(filepath.FromSlash(target.Entry)))
	if err != nil {
		return "", stageError(source.ArtifactForm, target, StageCompile, err)
	}

	out := outputPath(f.cfg, target)
	if err := ensureDir(out); err != nil {
		return "", stageError(source.ArtifactForm, target, StageWrite, err)
	}
	if err := os.WriteFile(out, html, 0600); err != nil {
		return "", stageError(source.ArtifactForm, target, StageWrite, err)
	}

	code, ok, err := target.SyncCode(f.cfg.Environment)
	if err != nil {
		return out, stageError(source.ArtifactForm, target, StageSync, err)
	}
	if !ok {
		return out, nil
	}
	if f.store == nil {
		return out, stageError(source.ArtifactForm, target, StageSync, errors.New("no database connection configured"))
	}

	column := formdb.ColumnForEntry(target.Entry)
	if err := f.store.UpdateLayout(ctx, column, code, string(html)); err != nil {
		return out, stageError(source.ArtifactForm, target, StageSync, err)
	}
	f.logger.Info("form synced",
		slog.String("entry", target.Entry),
		slog.String("database", f.cfg.Connection.Database),
		slog.String("column", string(column)),
		slog.Int("codform", code))
	return out, nil
}
