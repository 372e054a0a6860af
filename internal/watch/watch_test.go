package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
	"github.com/leapstack-labs/zeev/internal/testutil"
)

func TestWatcher_Route(t *testing.T) {
	w := New(t.TempDir(), config.WatchConfig{}, nil)

	tests := []struct {
		path   string
		want   source.Artifact
		wantOK bool
	}{
		{"src/app.js", source.ArtifactJS, true},
		{"src/project-a/js/helpers/dom.js", source.ArtifactJS, true},
		{"src/styles/app.scss", source.ArtifactCSS, true},
		{"src/form/app.html", source.ArtifactForm, true},
		{"src/project-a/form/header.html", source.ArtifactForm, true},
		{"src/emails/welcome.html", "", false},
		{"src/emails/templates/reset.html", "", false},
		{"src/styles/app.css", "", false},
		{"docs/index.html", "", false},
		{"app.js", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := w.Route(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type events struct {
	mu  sync.Mutex
	got []Event
	ch  chan Event
}

func newEvents() *events {
	return &events{ch: make(chan Event, 32)}
}

func (e *events) handle(_ context.Context, ev Event) {
	e.mu.Lock()
	e.got = append(e.got, ev)
	e.mu.Unlock()
	e.ch <- ev
}

// expect waits for want, skipping other events.
func (e *events) expect(t *testing.T, want Event) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-e.ch:
			if ev == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %+v", want)
		}
	}
}

func startWatcher(t *testing.T, root string, cfg config.WatchConfig, ev *events) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := New(root, cfg, testutil.NewTestLogger(t))
	go func() { done <- w.Run(ctx, ev.handle) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	// let the watcher register the tree
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_Run(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"src/js/app.js": "// v1\n"})

	ev := newEvents()
	startWatcher(t, root, config.WatchConfig{
		IgnoreInitial:    true,
		AwaitWriteFinish: config.AwaitWriteFinishConfig{StabilityThreshold: 20},
	}, ev)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "js", "app.js"), []byte("// v2\n"), 0600))
	ev.expect(t, Event{Kind: source.ArtifactJS, Path: "src/js/app.js"})

	testutil.WriteFiles(t, root, map[string]string{"src/project-a/styles/a.scss": "a{}"})
	ev.expect(t, Event{Kind: source.ArtifactCSS, Path: "src/project-a/styles/a.scss"})
}

func TestWatcher_Debounce(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"src/form/app.html": "<p></p>"})

	ev := newEvents()
	startWatcher(t, root, config.WatchConfig{
		IgnoreInitial:    true,
		AwaitWriteFinish: config.AwaitWriteFinishConfig{StabilityThreshold: 300},
	}, ev)

	path := filepath.Join(root, "src", "form", "app.html")
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0600))
		time.Sleep(10 * time.Millisecond)
	}
	ev.expect(t, Event{Kind: source.ArtifactForm, Path: "src/form/app.html"})

	select {
	case extra := <-ev.ch:
		t.Fatalf("unexpected second event %+v", extra)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_Initial(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"src/app.js":              "",
		"src/emails/welcome.html": "",
	})

	ev := newEvents()
	startWatcher(t, root, config.WatchConfig{
		IgnoreInitial:    false,
		AwaitWriteFinish: config.AwaitWriteFinishConfig{StabilityThreshold: 10},
	}, ev)

	ev.expect(t, Event{Kind: source.ArtifactJS, Path: "src/app.js"})

	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, e := range ev.got {
		assert.NotEqual(t, "src/emails/welcome.html", e.Path)
	}
}

func TestWatcher_MissingSourceDir(t *testing.T) {
	w := New(t.TempDir(), config.WatchConfig{}, nil)
	err := w.Run(context.Background(), func(context.Context, Event) {})
	assert.ErrorContains(t, err, "failed to watch")
}
