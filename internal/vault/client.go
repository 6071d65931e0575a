// Package vault implements the client for the Obsidian REST API and owns
// the note-discovery and structure caches layered on top of it.
package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/models"
)

// enrichConcurrency bounds the metadata fan-out during search enrichment.
const enrichConcurrency = 8

// authHeader is one way of presenting the API key to the vault store.
type authHeader struct {
	name   string
	prefix string
}

// Primary shape first; alternates are tried once, in order, when the store
// rejects the credentials. The winning shape is pinned for the session.
var authHeaders = []authHeader{
	{name: "Authorization", prefix: "Bearer "},
	{name: "Authorization"},
	{name: "x-api-key"},
	{name: "X-API-Key"},
	{name: "API-Key"},
}

// Config holds the settings needed to construct a Client.
type Config struct {
	APIURL      string
	APIKey      string
	Path        string
	InsecureTLS bool

	StructureTTL time.Duration
	NotesTTL     time.Duration

	// HTTPClient overrides the default client, used by tests.
	HTTPClient *http.Client
}

// Client talks to the Obsidian REST API and performs filesystem discovery
// against the local vault path. It is the sole owner of the filesystem-notes
// and vault-structure caches; construct one per process and share it.
type Client struct {
	apiURL    string
	apiKey    string
	vaultPath string
	http      *http.Client

	structureTTL time.Duration
	notesTTL     time.Duration

	authMu sync.Mutex
	auth   authHeader

	// cacheMu guards the cache fields only. It is never held across I/O,
	// so two concurrent misses may both scan and both store the result —
	// an accepted benign race, the scans are idempotent.
	cacheMu        sync.Mutex
	notesCache     *notesEntry
	structureCache *structureEntry
}

type notesEntry struct {
	notes    []models.NoteMetadata
	withTags bool
	at       time.Time
}

type structureEntry struct {
	structure *models.VaultStructure
	at        time.Time
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("vault: api url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vault: api key is required")
	}
	if cfg.StructureTTL <= 0 {
		cfg.StructureTTL = 5 * time.Minute
	}
	if cfg.NotesTTL <= 0 {
		cfg.NotesTTL = 3 * time.Minute
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
		if cfg.InsecureTLS {
			// The Obsidian Local REST API plugin serves a self-signed cert.
			hc.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			}
		}
	}

	return &Client{
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		apiKey:       cfg.APIKey,
		vaultPath:    cfg.Path,
		http:         hc,
		structureTTL: cfg.StructureTTL,
		notesTTL:     cfg.NotesTTL,
		auth:         authHeaders[0],
	}, nil
}

// apiResponse is the outcome of one vault API round trip.
type apiResponse struct {
	status int
	body   []byte
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, body []byte, contentType string, auth authHeader) (apiResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return apiResponse{}, fmt.Errorf("vault: build request: %w", err)
	}
	req.Header.Set(auth.name, auth.prefix+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("vault: %w", apperr.Upstream(0, err.Error()))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("vault: read response: %w", err)
	}
	return apiResponse{status: resp.StatusCode, body: data}, nil
}

// call performs one request with the pinned auth header. On a credential
// rejection it walks the alternate header shapes exactly once and pins the
// first one the store accepts.
func (c *Client) call(ctx context.Context, method, rawURL string, body []byte, contentType string) (apiResponse, error) {
	c.authMu.Lock()
	auth := c.auth
	c.authMu.Unlock()

	resp, err := c.attempt(ctx, method, rawURL, body, contentType, auth)
	if err != nil {
		return apiResponse{}, err
	}
	if resp.status != http.StatusUnauthorized && resp.status != http.StatusForbidden {
		return resp, nil
	}

	for _, alt := range authHeaders {
		if alt == auth {
			continue
		}
		altResp, altErr := c.attempt(ctx, method, rawURL, body, contentType, alt)
		if altErr != nil {
			continue
		}
		if altResp.status == http.StatusUnauthorized || altResp.status == http.StatusForbidden {
			continue
		}
		slog.Info("vault: pinned alternate auth header", slog.String("header", alt.name))
		c.authMu.Lock()
		c.auth = alt
		c.authMu.Unlock()
		return altResp, nil
	}
	return resp, nil
}

// noteURL builds the /vault/<path> URL with each segment URL-encoded.
func (c *Client) noteURL(path string) string {
	return c.apiURL + "/vault/" + encodePath(path)
}

func encodePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// normalizePath strips a single leading slash. No other validation is done.
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "/")
}

// ReadNote returns the raw content of the note at path.
func (c *Client) ReadNote(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("vault: read note: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	resp, err := c.call(ctx, http.MethodGet, c.noteURL(path), nil, "")
	if err != nil {
		return "", err
	}
	switch {
	case resp.status == http.StatusNotFound:
		return "", fmt.Errorf("vault: note %s: %w", path, apperr.ErrNotFound)
	case resp.status >= 400:
		return "", fmt.Errorf("vault: read %s: %w", path, apperr.Upstream(resp.status, string(resp.body)))
	}
	return string(resp.body), nil
}

// CreateNote creates a new note at path. It fails with ErrAlreadyExists when
// a note is already present, checked via an attempted read. When
// createParentFolders is set, intermediate folders are created by the store.
func (c *Client) CreateNote(ctx context.Context, path, content string, createParentFolders bool) error {
	if path == "" {
		return fmt.Errorf("vault: create note: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	if _, err := c.ReadNote(ctx, path); err == nil {
		return fmt.Errorf("vault: note %s: %w", path, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	if err := c.writeNote(ctx, path, content, createParentFolders); err != nil {
		return err
	}
	c.InvalidateCache()
	return nil
}

// UpdateNote replaces the content of an existing note. It fails with
// ErrNotFound when the note does not exist, checked via a read.
func (c *Client) UpdateNote(ctx context.Context, path, content string) error {
	if path == "" {
		return fmt.Errorf("vault: update note: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	if _, err := c.ReadNote(ctx, path); err != nil {
		return err
	}
	if err := c.writeNote(ctx, path, content, false); err != nil {
		return err
	}
	c.InvalidateCache()
	return nil
}

// AppendNote reads the current content, concatenates separator and content,
// and writes the result back. The read-modify-write is not atomic: a writer
// racing between the read and the write can lose its update. The store is
// shared and external, so no client-side locking is attempted.
func (c *Client) AppendNote(ctx context.Context, path, content, separator string) error {
	if path == "" {
		return fmt.Errorf("vault: append note: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	existing, err := c.ReadNote(ctx, path)
	if err != nil {
		return err
	}
	if err := c.writeNote(ctx, path, existing+separator+content, false); err != nil {
		return err
	}
	c.InvalidateCache()
	return nil
}

// DeleteNote removes the note at path.
func (c *Client) DeleteNote(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("vault: delete note: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	resp, err := c.call(ctx, http.MethodDelete, c.noteURL(path), nil, "")
	if err != nil {
		return err
	}
	switch {
	case resp.status == http.StatusNotFound:
		return fmt.Errorf("vault: note %s: %w", path, apperr.ErrNotFound)
	case resp.status >= 400:
		return fmt.Errorf("vault: delete %s: %w", path, apperr.Upstream(resp.status, string(resp.body)))
	}
	c.InvalidateCache()
	return nil
}

func (c *Client) writeNote(ctx context.Context, path, content string, createParentFolders bool) error {
	u := c.noteURL(path)
	if createParentFolders {
		u += "?createDirectories=true"
	}
	resp, err := c.call(ctx, http.MethodPut, u, []byte(content), "text/plain; charset=utf-8")
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return fmt.Errorf("vault: write %s: %w", path, apperr.Upstream(resp.status, string(resp.body)))
	}
	return nil
}

// SearchHit is one result returned by SearchNotes.
type SearchHit struct {
	Path     string       `json:"path"`
	Snippet  string       `json:"snippet,omitempty"`
	Matches  any          `json:"matches,omitempty"`
	Metadata *HitMetadata `json:"metadata,omitempty"`
}

// HitMetadata is the enrichment attached to a search hit.
type HitMetadata struct {
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Created  time.Time `json:"created,omitzero"`
}

// SearchResults carries the hits plus the count of hits dropped because
// their enrichment failed outright, so partial failures stay observable.
type SearchResults struct {
	Hits    []SearchHit
	Skipped int
}

// SearchNotes delegates to the store's search endpoint and then enriches
// each hit with note metadata using a bounded concurrent fan-out. A hit
// whose metadata simply is not known stays in the result set without
// metadata; only hits whose enrichment failed hard are dropped, counted in
// Skipped.
func (c *Client) SearchNotes(ctx context.Context, query, folder string) (*SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("vault: search: %w: empty query", apperr.ErrInvalidArgument)
	}

	payload := map[string]string{"query": query}
	if folder != "" {
		payload["folder"] = normalizePath(folder)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vault: search: marshal request: %w", err)
	}

	resp, err := c.call(ctx, http.MethodPost, c.apiURL+"/search/simple/", body, "application/json")
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, fmt.Errorf("vault: search: %w", apperr.Upstream(resp.status, string(resp.body)))
	}
	if len(resp.body) == 0 {
		return &SearchResults{}, nil
	}

	var hits []SearchHit
	if err := json.Unmarshal(resp.body, &hits); err != nil {
		return nil, fmt.Errorf("vault: search: %w", apperr.Upstream(resp.status, "malformed response: "+err.Error()))
	}

	dropped := make([]bool, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range hits {
		i := i
		g.Go(func() error {
			meta, metaErr := c.NoteMetadata(gctx, hits[i].Path)
			switch {
			case metaErr == nil:
				hits[i].Metadata = &HitMetadata{
					Size:     meta.Size,
					Modified: meta.Modified,
					Created:  meta.Created,
				}
			case errors.Is(metaErr, apperr.ErrNotFound):
				// Metadata unknown; keep the hit as-is.
			default:
				dropped[i] = true
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures are per-slot

	out := &SearchResults{Hits: make([]SearchHit, 0, len(hits))}
	for i, hit := range hits {
		if dropped[i] {
			out.Skipped++
			continue
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// NoteMetadata looks up metadata for a single note from the discovery scan.
func (c *Client) NoteMetadata(ctx context.Context, path string) (*models.NoteMetadata, error) {
	if path == "" {
		return nil, fmt.Errorf("vault: note metadata: %w: empty path", apperr.ErrInvalidArgument)
	}
	path = normalizePath(path)

	notes, err := c.ListNotes(ctx, "", false)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if notes[i].Path == path {
			return &notes[i], nil
		}
	}
	return nil, fmt.Errorf("vault: note metadata %s: %w", path, apperr.ErrNotFound)
}

// ExecuteCommand passes a command through to the store's command endpoint.
// The result shape is store-defined and not validated; non-JSON responses
// are wrapped verbatim.
func (c *Client) ExecuteCommand(ctx context.Context, command string, params map[string]any) (map[string]any, error) {
	if command == "" {
		return nil, fmt.Errorf("vault: execute command: %w: empty command", apperr.ErrInvalidArgument)
	}
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"command": command, "parameters": params})
	if err != nil {
		return nil, fmt.Errorf("vault: execute command: marshal request: %w", err)
	}

	resp, err := c.call(ctx, http.MethodPost, c.apiURL+"/command/", body, "application/json")
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, fmt.Errorf("vault: command %s: %w", command, apperr.Upstream(resp.status, string(resp.body)))
	}

	var result map[string]any
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return map[string]any{"result": string(resp.body), "success": true}, nil
	}
	return result, nil
}

// VaultInfo is the store-reported vault descriptor.
type VaultInfo struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Files  []string `json:"files"`
	Status string   `json:"status,omitempty"`
}

// GetVaultInfo fetches the vault descriptor from the store. An empty
// response body is tolerated and mapped to a minimal connected descriptor.
func (c *Client) GetVaultInfo(ctx context.Context) (*VaultInfo, error) {
	resp, err := c.call(ctx, http.MethodGet, c.apiURL+"/vault/", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, fmt.Errorf("vault: info: %w", apperr.Upstream(resp.status, string(resp.body)))
	}
	if len(resp.body) == 0 {
		return &VaultInfo{Name: "Unknown Vault", Path: c.vaultPath, Status: "connected"}, nil
	}
	var info VaultInfo
	if err := json.Unmarshal(resp.body, &info); err != nil {
		return nil, fmt.Errorf("vault: info: %w", apperr.Upstream(resp.status, "malformed response: "+err.Error()))
	}
	if info.Path == "" {
		info.Path = c.vaultPath
	}
	return &info, nil
}

// Health reports whether the vault store is reachable with valid credentials.
func (c *Client) Health(ctx context.Context) bool {
	_, err := c.GetVaultInfo(ctx)
	return err == nil
}

// InvalidateCache clears the vault-structure cache and the filesystem-notes
// cache together. The structure's derived counts come from the note scan, so
// clearing one without the other would leave them inconsistent.
func (c *Client) InvalidateCache() {
	c.cacheMu.Lock()
	c.notesCache = nil
	c.structureCache = nil
	c.cacheMu.Unlock()
}
