package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/leapstack-labs/zeev/internal/config"
)

// Mock is a REST API over a JSON file. Every top-level key is a resource:
// arrays are collections of objects identified by "id", objects are
// singular resources. Changes are written back to the file.
type Mock struct {
	file   string
	cfg    config.MockConfig
	logger *slog.Logger

	mu sync.Mutex
	db map[string]any
}

// LoadMock reads the mock database. A missing file is reported with an
// error wrapping fs.ErrNotExist.
// If logger is nil, a discard logger is used.
func LoadMock(file string, cfg config.MockConfig, logger *slog.Logger) (*Mock, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can't read the mock database: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var db map[string]any
	if err := dec.Decode(&db); err != nil {
		return nil, fmt.Errorf("invalid mock database %s: %w", file, err)
	}
	if db == nil {
		db = map[string]any{}
	}
	return &Mock{file: file, cfg: cfg, logger: logger, db: db}, nil
}

// Handler returns the HTTP handler. Resources are mounted under cfg.Route.
func (m *Mock) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		cors,
		delay(m.cfg.Delay()),
	)

	r.Route(m.cfg.Route, func(r chi.Router) {
		r.Get("/db", m.handleDB)
		r.Get("/{resource}", m.handleList)
		r.Post("/{resource}", m.handleCreate)
		r.Put("/{resource}", m.handleReplaceSingular)
		r.Patch("/{resource}", m.handlePatchSingular)
		r.Get("/{resource}/{id}", m.handleGet)
		r.Put("/{resource}/{id}", m.handleReplace)
		r.Patch("/{resource}/{id}", m.handlePatch)
		r.Delete("/{resource}/{id}", m.handleDelete)
	})
	return r
}

// Serve runs the mock server on the configured port until ctx is cancelled.
func (m *Mock) Serve(ctx context.Context) error {
	return listenAndServe(ctx, "mock server", m.cfg.Port, m.Handler(), m.logger)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// delay holds every response for d to mimic a remote API.
func delay(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d > 0 {
				t := time.NewTimer(d)
				select {
				case <-r.Context().Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readObject(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if obj == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return obj, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// collection returns the items of an array resource.
func (m *Mock) collection(name string) ([]any, bool) {
	items, ok := m.db[name].([]any)
	return items, ok
}

func findItem(items []any, id string) int {
	for i, item := range items {
		if obj, ok := item.(map[string]any); ok && idString(obj["id"]) == id {
			return i
		}
	}
	return -1
}

// nextID returns one more than the largest numeric id in items. Collections
// keyed by string ids get a random UUID instead.
func nextID(items []any) any {
	var highest int64
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(idString(obj["id"]), 10, 64)
		if _, isString := obj["id"].(string); isString && err != nil {
			return uuid.NewString()
		}
		if err == nil && n > highest {
			highest = n
		}
	}
	return json.Number(strconv.FormatInt(highest+1, 10))
}

// persist writes the database back to its file. Callers hold m.mu.
func (m *Mock) persist() {
	data, err := json.MarshalIndent(m.db, "", "  ")
	if err == nil {
		err = os.WriteFile(m.file, append(data, '\n'), 0600)
	}
	if err != nil {
		m.logger.Warn("failed to save mock database", "file", m.file, "err", err)
	}
}

func (m *Mock) handleDB(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	writeJSON(w, http.StatusOK, m.db)
}

// handleList returns a resource. Query parameters filter collections by
// field equality.
func (m *Mock) handleList(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := chi.URLParam(r, "resource")
	res, ok := m.db[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	items, ok := res.([]any)
	if !ok || len(r.URL.Query()) == 0 {
		writeJSON(w, http.StatusOK, res)
		return
	}

	filtered := []any{}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		match := true
		for field, values := range r.URL.Query() {
			if idString(obj[field]) != values[0] {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, item)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (m *Mock) handleGet(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, _ := m.collection(chi.URLParam(r, "resource"))
	i := findItem(items, chi.URLParam(r, "id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, items[i])
}

func (m *Mock) handleCreate(w http.ResponseWriter, r *http.Request) {
	obj, err := readObject(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := chi.URLParam(r, "resource")
	items, ok := m.collection(name)
	if !ok && m.db[name] != nil {
		http.Error(w, name+" is not a collection", http.StatusBadRequest)
		return
	}
	if idString(obj["id"]) == "" {
		obj["id"] = nextID(items)
	} else if findItem(items, idString(obj["id"])) >= 0 {
		http.Error(w, "duplicate id "+idString(obj["id"]), http.StatusConflict)
		return
	}
	m.db[name] = append(items, obj)
	m.persist()
	writeJSON(w, http.StatusCreated, obj)
}

func (m *Mock) handleReplace(w http.ResponseWriter, r *http.Request) {
	m.update(w, r, false)
}

func (m *Mock) handlePatch(w http.ResponseWriter, r *http.Request) {
	m.update(w, r, true)
}

func (m *Mock) update(w http.ResponseWriter, r *http.Request, merge bool) {
	obj, err := readObject(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	items, _ := m.collection(chi.URLParam(r, "resource"))
	i := findItem(items, chi.URLParam(r, "id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}

	current := items[i].(map[string]any)
	if merge {
		for k, v := range obj {
			current[k] = v
		}
		obj = current
	}
	obj["id"] = current["id"]
	items[i] = obj
	m.persist()
	writeJSON(w, http.StatusOK, obj)
}

func (m *Mock) handleReplaceSingular(w http.ResponseWriter, r *http.Request) {
	m.updateSingular(w, r, false)
}

func (m *Mock) handlePatchSingular(w http.ResponseWriter, r *http.Request) {
	m.updateSingular(w, r, true)
}

func (m *Mock) updateSingular(w http.ResponseWriter, r *http.Request, merge bool) {
	obj, err := readObject(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := chi.URLParam(r, "resource")
	current, ok := m.db[name].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	if merge {
		for k, v := range obj {
			current[k] = v
		}
		obj = current
	}
	m.db[name] = obj
	m.persist()
	writeJSON(w, http.StatusOK, obj)
}

func (m *Mock) handleDelete(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := chi.URLParam(r, "resource")
	items, _ := m.collection(name)
	i := findItem(items, chi.URLParam(r, "id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	m.db[name] = append(items[:i:i], items[i+1:]...)
	m.persist()
	writeJSON(w, http.StatusOK, map[string]any{})
}
