package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/zeev/internal/config"
)

// Live reload endpoints.
const (
	ReloadPath       = "/__reload"
	ReloadScriptPath = "/__reload.js"
)

// reloadScript reconnects after a restart and reloads the page on every
// rebuild.
const reloadScript = `;(function() {
  var es = new EventSource('` + ReloadPath + `');
  es.onmessage = function(e) {
    if (e.data === 'reload') {
      window.location.reload();
    }
  };
  es.onerror = function() {
    console.log('[zeev] live reload connection lost, retrying...');
  };
})();
`

var reloadTag = []byte(`<script src="` + ReloadScriptPath + `"></script>`)

// Static serves the output directory.
type Static struct {
	dir      string
	cfg      config.ServerConfig
	notifier *Notifier
	logger   *slog.Logger
}

// NewStatic returns a static server for dir. Reload signals broadcast on n
// reach connected pages when live reload is on.
// If logger is nil, a discard logger is used.
func NewStatic(dir string, cfg config.ServerConfig, n *Notifier, logger *slog.Logger) *Static {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if n == nil {
		n = NewNotifier()
	}
	return &Static{dir: dir, cfg: cfg, notifier: n, logger: logger}
}

// Handler returns the HTTP handler.
func (s *Static) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.NoCache,
	)

	if s.cfg.Livereload {
		r.Get(ReloadPath, s.handleReload)
		r.Get(ReloadScriptPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
			_, _ = w.Write([]byte(reloadScript))
		})
	}
	r.Get("/*", s.handleFile)
	r.Head("/*", s.handleFile)
	return r
}

// Serve runs the server on the configured port until ctx is cancelled.
func (s *Static) Serve(ctx context.Context) error {
	if s.cfg.Livereload {
		s.logger.Info("live reload enabled")
	}
	return listenAndServe(ctx, "static server", s.cfg.Port, s.Handler(), s.logger)
}

func (s *Static) handleFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.dir, filepath.FromSlash(name))

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
		info, err = os.Stat(file)
	}
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to stat file", "path", name, "err", err)
		}
		http.NotFound(w, r)
		return
	}

	if !s.cfg.Livereload || filepath.Ext(file) != ".html" {
		http.ServeFile(w, r, file)
		return
	}

	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(injectReload(data))
}

// injectReload adds the live reload script before </body>, or at the end
// of documents without one.
func injectReload(html []byte) []byte {
	i := bytes.LastIndex(html, []byte("</body>"))
	if i < 0 {
		i = bytes.LastIndex(html, []byte("</BODY>"))
	}
	if i < 0 {
		return append(bytes.Clone(html), reloadTag...)
	}
	out := make([]byte, 0, len(html)+len(reloadTag))
	out = append(out, html[:i]...)
	out = append(out, reloadTag...)
	return append(out, html[i:]...)
}

func (s *Static) handleReload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	_, _ = fmt.Fprint(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case file := <-ch:
			s.logger.Debug("reloading pages", "file", file)
			_, _ = fmt.Fprintf(w, "data: reload\n\n")
			flusher.Flush()
		}
	}
}

// Reload broadcasts a rebuild of file to connected pages.
func (s *Static) Reload(file string) {
	s.notifier.Broadcast(file)
}
