// Package logging provides the slog handler used by the zeev CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures NewHandler.
type Options struct {
	// Level is the minimum level written. Defaults to Info.
	Level slog.Leveler
	// Format is FormatText (default) or FormatJSON.
	Format string
	// Time prints a clock prefix on every line in text format.
	Time bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

// NewHandler returns a handler for w. The text format is meant for a
// terminal; colours are dropped when w is not one.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	if opts.Format == FormatJSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	r := lipgloss.NewRenderer(w)
	return &textHandler{
		out:    &lockedWriter{w: w},
		level:  level,
		time:   opts.Time,
		styles: newStyles(r),
	}
}

type styles struct {
	levels map[slog.Level]lipgloss.Style
	key    lipgloss.Style
	time   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		levels: map[slog.Level]lipgloss.Style{
			slog.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("8")),
			slog.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
			slog.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
			slog.LevelError: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
		key:  r.NewStyle().Faint(true),
		time: r.NewStyle().Faint(true),
	}
}

func (s styles) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return s.levels[slog.LevelError]
	case l >= slog.LevelWarn:
		return s.levels[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return s.levels[slog.LevelInfo]
	default:
		return s.levels[slog.LevelDebug]
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

// textHandler prints "LEVEL message key=value ..." lines.
type textHandler struct {
	out    *lockedWriter
	level  slog.Leveler
	time   bool
	styles styles
	attrs  []slog.Attr
	groups []string
}

func (h *textHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *textHandler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	if h.time && !rec.Time.IsZero() {
		b.WriteString(h.styles.time.Render(rec.Time.Format(time.TimeOnly)))
		b.WriteByte(' ')
	}
	b.WriteString(h.styles.level(rec.Level).Render(fmt.Sprintf("%-5s", rec.Level.String())))
	b.WriteByte(' ')
	b.WriteString(rec.Message)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		h.appendAttr(&b, "", a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')
	return h.out.write([]byte(b.String()))
}

func (h *textHandler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, key, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(h.styles.key.Render(key + "="))
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && (s == "" || strings.ContainsAny(s, " \t\n\"=")) {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	prefix := strings.Join(h.groups, ".")
	h2.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(slices.Clone(h.groups), name)
	return &h2
}
