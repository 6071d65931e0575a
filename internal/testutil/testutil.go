// Package testutil provides helpers shared by the package tests: a
// temp-directory vault seeded with notes and a fake Obsidian REST API
// backed by it.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

// TestAPIKey is the credential the fake API accepts.
const TestAPIKey = "test-api-key"

// SeedVault writes the given path->content notes into a temp directory and
// returns its root.
func SeedVault(t *testing.T, notes map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range notes {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("seed vault: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("seed vault: %v", err)
		}
	}
	return root
}

// AuthMode selects which credential shape the fake API accepts.
type AuthMode int

const (
	// AuthBearer accepts "Authorization: Bearer <key>".
	AuthBearer AuthMode = iota
	// AuthRawHeader accepts "Authorization: <key>" without a scheme.
	AuthRawHeader
	// AuthXAPIKey accepts the "x-api-key" header.
	AuthXAPIKey
)

// FakeAPI is an httptest-backed stand-in for the Obsidian REST API, serving
// notes out of the vault directory it was seeded with.
type FakeAPI struct {
	Server *httptest.Server
	Root   string
	Mode   AuthMode

	mu       sync.Mutex
	requests int
	commands []string
}

// NewFakeAPI starts a fake API over the vault rooted at root. The server is
// shut down when the test ends.
func NewFakeAPI(t *testing.T, root string, mode AuthMode) *FakeAPI {
	t.Helper()
	f := &FakeAPI{Root: root, Mode: mode}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake API.
func (f *FakeAPI) URL() string { return f.Server.URL }

// Requests returns how many authorized requests the fake API has served.
func (f *FakeAPI) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// Commands returns the commands received on the command endpoint, in order.
func (f *FakeAPI) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *FakeAPI) authorized(r *http.Request) bool {
	switch f.Mode {
	case AuthBearer:
		return r.Header.Get("Authorization") == "Bearer "+TestAPIKey
	case AuthRawHeader:
		return r.Header.Get("Authorization") == TestAPIKey
	case AuthXAPIKey:
		return r.Header.Get("x-api-key") == TestAPIKey
	}
	return false
}

func (f *FakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/vault/" && r.Method == http.MethodGet:
		f.handleVaultInfo(w)
	case strings.HasPrefix(r.URL.Path, "/vault/"):
		f.handleNote(w, r)
	case r.URL.Path == "/search/simple/" && r.Method == http.MethodPost:
		f.handleSearch(w, r)
	case r.URL.Path == "/command/" && r.Method == http.MethodPost:
		f.handleCommand(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAPI) handleVaultInfo(w http.ResponseWriter) {
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			files = append(files, e.Name()+"/")
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	writeJSON(w, map[string]any{"name": "Test Vault", "path": f.Root, "files": files})
}

func (f *FakeAPI) notePath(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.URL.EscapedPath(), "/vault/")
	segs := strings.Split(raw, "/")
	for i, s := range segs {
		dec, err := url.PathUnescape(s)
		if err != nil {
			return "", false
		}
		segs[i] = dec
	}
	rel := strings.Join(segs, "/")
	if rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	return filepath.Join(f.Root, filepath.FromSlash(rel)), true
}

func (f *FakeAPI) handleNote(w http.ResponseWriter, r *http.Request) {
	full, ok := f.notePath(r)
	if !ok {
		http.Error(w, `{"error":"bad path"}`, http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		data, err := os.ReadFile(full)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write(data)
	case http.MethodPut:
		if r.URL.Query().Get("createDirectories") == "true" {
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if _, err := os.Stat(full); err != nil {
			http.NotFound(w, r)
			return
		}
		if err := os.Remove(full); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *FakeAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hits := []map[string]any{}
	_ = filepath.Walk(f.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, _ := filepath.Rel(f.Root, path)
		rel = filepath.ToSlash(rel)
		if req.Folder != "" && !strings.HasPrefix(rel, strings.TrimSuffix(req.Folder, "/")+"/") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(string(data)), strings.ToLower(req.Query)) {
			hits = append(hits, map[string]any{"path": rel, "snippet": req.Query})
		}
		return nil
	})
	writeJSON(w, hits)
}

func (f *FakeAPI) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command    string         `json:"command"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.commands = append(f.commands, req.Command)
	f.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "command": req.Command})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
