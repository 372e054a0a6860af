package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/mattn/go-zglob"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
)

// Job is one target of one artifact kind.
type Job struct {
	Kind   source.Artifact
	Target source.BuildTarget
}

// Dispatcher routes changed files to their build targets and runs the
// matching bundler for each.
type Dispatcher struct {
	cfg      *config.Config
	bundlers map[source.Artifact]Bundler
	logger   *slog.Logger

	// OnBuilt is called with the output path after every successful build.
	OnBuilt func(kind source.Artifact, output string)
}

// NewDispatcher returns a dispatcher with the esbuild, sass and form bundlers.
func NewDispatcher(cfg *config.Config, store LayoutStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		cfg: cfg,
		bundlers: map[source.Artifact]Bundler{
			source.ArtifactJS:   NewJavaScript(cfg),
			source.ArtifactCSS:  NewStyle(cfg, nil),
			source.ArtifactForm: NewForm(cfg, store, logger),
		},
		logger: logger,
	}
}

// SetBundler replaces the bundler used for kind.
func (d *Dispatcher) SetBundler(kind source.Artifact, b Bundler) {
	d.bundlers[kind] = b
}

// HandleChange resolves the targets of a changed file and builds them. path
// is relative to the project root. Failures are logged and returned joined;
// a file without targets is not an error.
func (d *Dispatcher) HandleChange(ctx context.Context, kind source.Artifact, path string) error {
	path = filepath.ToSlash(path)
	targets := source.Resolve(kind, path, d.cfg.Src)
	if len(targets) == 0 {
		d.logger.Debug("no build target for change", "artifact", kind, "path", path)
		return nil
	}

	var errs []error
	for _, t := range targets {
		if err := d.Build(ctx, Job{Kind: kind, Target: t}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build runs one job.
func (d *Dispatcher) Build(ctx context.Context, job Job) error {
	b, ok := d.bundlers[job.Kind]
	if !ok {
		return fmt.Errorf("no bundler for artifact %q", job.Kind)
	}

	out, err := b.Bundle(ctx, job.Target)
	if err != nil {
		attrs := []any{"artifact", job.Kind, "entry", job.Target.Entry, "err", err}
		var be *Error
		if errors.As(err, &be) {
			attrs = []any{"artifact", be.Artifact, "entry", be.Entry, "stage", be.Stage, "err", be.Err}
		}
		d.logger.Error("build failed", attrs...)
		return err
	}

	d.logger.Info("bundled", "artifact", job.Kind, "entry", job.Target.Entry, "output", d.relative(out))
	if d.OnBuilt != nil {
		d.OnBuilt(job.Kind, out)
	}
	return nil
}

func (d *Dispatcher) relative(p string) string {
	if d.cfg.Root == "" {
		return filepath.ToSlash(p)
	}
	if rel, err := filepath.Rel(d.cfg.Root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// Plan lists every job of a full build: all declared targets plus the
// zero-config root files found under src/. Duplicates are removed.
func (d *Dispatcher) Plan() ([]Job, error) {
	var jobs []Job
	seen := make(map[string]bool)
	add := func(kind source.Artifact, targets []source.BuildTarget) {
		for _, t := range targets {
			key := string(kind) + "\x00" + t.Entry + "\x00" + t.Output
			if seen[key] {
				continue
			}
			seen[key] = true
			jobs = append(jobs, Job{Kind: kind, Target: t})
		}
	}

	for _, kind := range source.Artifacts {
		add(kind, d.cfg.Src.All(kind))

		files, err := d.rootFiles(kind)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(kind, source.Resolve(kind, f, d.cfg.Src))
		}
	}
	return jobs, nil
}

// rootFiles finds zero-config root files of kind, relative to the project root.
func (d *Dispatcher) rootFiles(kind source.Artifact) ([]string, error) {
	ext := kind.SourceExt()
	dirs := []string{"src"}
	if folder, ok := source.RootProjectPath(ext); ok {
		dirs = append(dirs, "src/"+folder)
	}

	var files []string
	for _, dir := range dirs {
		abs := d.cfg.Path(filepath.FromSlash(dir))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		matches, err := zglob.Glob(filepath.Join(abs, "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			rel := dir + "/" + filepath.Base(m)
			if source.Classify(rel).IsRootFile {
				files = append(files, rel)
			}
		}
	}
	return files, nil
}

// BuildAll runs every planned job, a few at a time. All failures are
// returned joined.
func (d *Dispatcher) BuildAll(ctx context.Context) error {
	jobs, err := d.Plan()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		d.logger.Warn("nothing to build: no src targets declared and no root files found")
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range jobs {
		g.Go(func() error {
			if err := d.Build(gctx, job); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
