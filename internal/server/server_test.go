package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/testutil"
)

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test server URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func newStaticServer(t *testing.T, livereload bool) (*httptest.Server, *Static, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"index.html":        "<html><body><h1>zeev</h1></body></html>",
		"app-bundle.js":     "console.log(1)",
		"forms/report.html": "<table></table>",
	})
	s := NewStatic(dir, config.ServerConfig{Port: 0, Livereload: livereload}, nil, testutil.NewTestLogger(t))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, s, dir
}

func TestStatic_ServeFiles(t *testing.T) {
	ts, _, _ := newStaticServer(t, true)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "index", path: "/", wantStatus: http.StatusOK,
			wantBody: `<html><body><h1>zeev</h1><script src="/__reload.js"></script></body></html>`},
		{name: "script", path: "/app-bundle.js", wantStatus: http.StatusOK, wantBody: "console.log(1)"},
		{name: "html without body", path: "/forms/report.html", wantStatus: http.StatusOK,
			wantBody: `<table></table><script src="/__reload.js"></script>`},
		{name: "missing", path: "/nope.js", wantStatus: http.StatusNotFound},
		{name: "directory without index", path: "/forms/", wantStatus: http.StatusNotFound},
		{name: "traversal", path: "/../../etc/passwd", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, body)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, resp.Header.Get("Cache-Control"), "no-cache")
			}
		})
	}
}

func TestStatic_NoLivereload(t *testing.T) {
	ts, _, _ := newStaticServer(t, false)

	_, body := get(t, ts.URL+"/")
	assert.Equal(t, "<html><body><h1>zeev</h1></body></html>", body)

	resp, _ := get(t, ts.URL+ReloadScriptPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatic_ReloadEvents(t *testing.T) {
	ts, s, _ := newStaticServer(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+ReloadPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewReader(resp.Body)
	line, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: connected\n", line)

	s.Reload("dist/app-bundle.js")

	for {
		line, err = lines.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimSpace(line) != "" {
			break
		}
	}
	assert.Equal(t, "data: reload\n", line)

	_, body := get(t, ts.URL+ReloadScriptPath)
	assert.Contains(t, body, "new EventSource('/__reload')")
}

func TestInjectReload(t *testing.T) {
	assert.Equal(t, `<BODY>x<script src="/__reload.js"></script></BODY>`,
		string(injectReload([]byte("<BODY>x</BODY>"))))
}

const mockDB = `{
  "users": [
    {"id": 1, "name": "Ana", "role": "admin"},
    {"id": 2, "name": "Bruno", "role": "user"}
  ],
  "sessions": [{"id": "a1", "user": 1}],
  "profile": {"name": "zeev"}
}`

func newMockServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "db.json")
	require.NoError(t, os.WriteFile(file, []byte(mockDB), 0600))

	m, err := LoadMock(file, config.MockConfig{Route: "/mocks/api", DelayInMs: 0}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(m.Handler())
	t.Cleanup(ts.Close)
	return ts, file
}

func send(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var obj map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = json.Unmarshal(data, &obj)
	return resp, obj
}

func TestMock_Read(t *testing.T) {
	ts, _ := newMockServer(t)

	resp, body := get(t, ts.URL+"/mocks/api/users")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var users []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &users))
	assert.Len(t, users, 2)

	_, body = get(t, ts.URL+"/mocks/api/users?role=admin")
	require.NoError(t, json.Unmarshal([]byte(body), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0]["name"])

	resp, obj := send(t, http.MethodGet, ts.URL+"/mocks/api/users/2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bruno", obj["name"])

	resp, obj = send(t, http.MethodGet, ts.URL+"/mocks/api/profile", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zeev", obj["name"])

	resp, _ = send(t, http.MethodGet, ts.URL+"/mocks/api/users/9", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = send(t, http.MethodGet, ts.URL+"/mocks/api/orders", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, obj = send(t, http.MethodGet, ts.URL+"/mocks/api/db", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, obj, "users")
	assert.Contains(t, obj, "profile")
}

func TestMock_Write(t *testing.T) {
	ts, file := newMockServer(t)

	resp, obj := send(t, http.MethodPost, ts.URL+"/mocks/api/users", `{"name": "Carla"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(3), obj["id"])

	resp, _ = send(t, http.MethodPost, ts.URL+"/mocks/api/users", `{"id": 1, "name": "Dup"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, obj = send(t, http.MethodPatch, ts.URL+"/mocks/api/users/1", `{"role": "owner"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ana", obj["name"])
	assert.Equal(t, "owner", obj["role"])

	resp, obj = send(t, http.MethodPut, ts.URL+"/mocks/api/users/2", `{"id": 99, "name": "Bia"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), obj["id"], "id is kept on replace")
	assert.NotContains(t, obj, "role")

	resp, _ = send(t, http.MethodDelete, ts.URL+"/mocks/api/users/1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, obj = send(t, http.MethodPatch, ts.URL+"/mocks/api/profile", `{"theme": "dark"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dark", obj["theme"])

	resp, obj = send(t, http.MethodPost, ts.URL+"/mocks/api/sessions", `{"user": 2}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	id, ok := obj["id"].(string)
	require.True(t, ok, "string ids stay strings")
	assert.Len(t, id, 36)

	resp, _ = send(t, http.MethodPost, ts.URL+"/mocks/api/users", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var saved struct {
		Users   []map[string]any `json:"users"`
		Profile map[string]any   `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved.Users, 2)
	assert.Equal(t, "Bia", saved.Users[0]["name"])
	assert.Equal(t, "Carla", saved.Users[1]["name"])
	assert.Equal(t, "dark", saved.Profile["theme"])
}

func TestMock_Preflight(t *testing.T) {
	ts, _ := newMockServer(t)
	resp, _ := send(t, http.MethodOptions, ts.URL+"/mocks/api/users", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestMock_Delay(t *testing.T) {
	h := delay(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLoadMock_Missing(t *testing.T) {
	_, err := LoadMock(filepath.Join(t.TempDir(), "db.json"), config.MockConfig{}, nil)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
