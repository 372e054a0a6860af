// Package watch reports changes to source files under src/, routed to the
// artifact kind they build.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-zglob"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
)

// SourceDir is the watched directory, relative to the project root.
const SourceDir = "src"

// Route sends files matching any Include pattern and no Exclude pattern to
// the bundler of Kind. Patterns are slash separated and relative to the
// project root.
type Route struct {
	Kind    source.Artifact
	Include []string
	Exclude []string
}

// DefaultRoutes are the zeev watch globs. Email templates live under
// src/emails and are never built.
var DefaultRoutes = []Route{
	{Kind: source.ArtifactJS, Include: []string{"src/**/*.js"}},
	{Kind: source.ArtifactCSS, Include: []string{"src/**/*.scss"}},
	{Kind: source.ArtifactForm, Include: []string{"src/**/*.html"}, Exclude: []string{"src/emails/**/*"}},
}

// Event is a settled change to a routed file.
type Event struct {
	Kind source.Artifact
	// Path is slash separated and relative to the project root.
	Path string
}

// Handler receives events. Calls for different paths may run concurrently.
type Handler func(ctx context.Context, ev Event)

// Watcher watches the src/ tree of a project.
type Watcher struct {
	root          string
	routes        []Route
	stability     time.Duration
	ignoreInitial bool
	logger        *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	running sync.WaitGroup
}

// New returns a watcher for the project at root.
// If logger is nil, a discard logger is used.
func New(root string, cfg config.WatchConfig, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		root:          root,
		routes:        DefaultRoutes,
		stability:     cfg.Stability(),
		ignoreInitial: cfg.IgnoreInitial,
		logger:        logger,
		pending:       make(map[string]*time.Timer),
	}
}

// Route returns the artifact kind a project-relative path builds.
func (w *Watcher) Route(rel string) (source.Artifact, bool) {
	rel = filepath.ToSlash(rel)
	for _, r := range w.routes {
		if matchAny(r.Include, rel) && !matchAny(r.Exclude, rel) {
			return r.Kind, true
		}
	}
	return "", false
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := zglob.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Run watches until ctx is cancelled, then waits for running handlers.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	srcDir := filepath.Join(w.root, SourceDir)
	if err := w.addTree(ctx, watcher, srcDir, !w.ignoreInitial, handle); err != nil {
		return fmt.Errorf("failed to watch %s: %w", srcDir, err)
	}
	w.logger.Info("watching for changes", "dir", srcDir)

	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, event, handle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, handle Handler) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// files may land in a new directory before it is watched
			if err := w.addTree(ctx, watcher, event.Name, true, handle); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "err", err)
			}
			return
		}
	}
	w.schedule(ctx, event.Name, handle)
}

// addTree watches dir and its subdirectories, skipping hidden ones. With
// emit set, existing files are reported as changes.
func (w *Watcher) addTree(ctx context.Context, watcher *fsnotify.Watcher, dir string, emit bool, handle Handler) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		if emit {
			w.schedule(ctx, path, handle)
		}
		return nil
	})
}

// schedule reports path once it has not changed for the stability threshold.
func (w *Watcher) schedule(ctx context.Context, path string, handle Handler) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	kind, ok := w.Route(rel)
	if !ok {
		w.logger.Debug("ignoring change", "path", rel)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[rel]; ok {
		t.Stop()
	}
	w.pending[rel] = time.AfterFunc(w.stability, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		if w.closed || ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		w.running.Add(1)
		w.mu.Unlock()
		defer w.running.Done()

		w.logger.Debug("change detected", "artifact", kind, "path", rel)
		handle(ctx, Event{Kind: kind, Path: rel})
	})
}

// drain stops pending timers and waits for running handlers.
func (w *Watcher) drain() {
	w.mu.Lock()
	w.closed = true
	for rel, t := range w.pending {
		t.Stop()
		delete(w.pending, rel)
	}
	w.mu.Unlock()
	w.running.Wait()
}
