// Package resources exposes vault notes and folders as MCP resources
// addressed by obsidian:// URIs, with a per-URI read cache.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/models"
	"github.com/ferrost/othala/internal/vault"
)

// Scheme and authority of every vault resource URI.
const (
	Scheme    = "obsidian"
	Authority = "notes"
)

// BuildURI turns a vault-relative path into a resource URI. Each path
// segment is escaped independently so the separators survive.
func BuildURI(notePath string) string {
	segs := strings.Split(strings.TrimPrefix(notePath, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return Scheme + "://" + Authority + "/" + strings.Join(segs, "/")
}

// ParseURI extracts the vault-relative path from a resource URI. A trailing
// slash survives parsing so folder URIs stay distinguishable.
func ParseURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("resources: parse %q: %w", uri, apperr.ErrInvalidURI)
	}
	if u.Scheme != Scheme || u.Host != Authority {
		return "", fmt.Errorf("resources: %q: %w: want %s://%s/", uri, apperr.ErrInvalidURI, Scheme, Authority)
	}
	raw := strings.TrimPrefix(u.EscapedPath(), "/")
	segs := strings.Split(raw, "/")
	for i, s := range segs {
		dec, err := url.PathUnescape(s)
		if err != nil {
			return "", fmt.Errorf("resources: %q: %w", uri, apperr.ErrInvalidURI)
		}
		segs[i] = dec
	}
	return strings.Join(segs, "/"), nil
}

// IsFolderPath reports whether a parsed resource path names a folder: empty
// means the vault root, a trailing slash is explicit, and a final segment
// without an extension is treated as a folder.
func IsFolderPath(p string) bool {
	if p == "" || strings.HasSuffix(p, "/") {
		return true
	}
	return path.Ext(path.Base(p)) == ""
}

// Catalog lists and reads vault resources. Reads go through a per-URI TTL
// cache owned by the catalog.
type Catalog struct {
	vault *vault.Client
	log   *slog.Logger
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	content *models.ResourceContent
	at      time.Time
}

// New creates a Catalog over the given vault client.
func New(vc *vault.Client, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		vault: vc,
		log:   log,
		ttl:   ttl,
		cache: map[string]cacheEntry{},
	}
}

// Discover enumerates the available resources: the vault root, one folder
// resource per known folder, and one note resource per note. When the
// structure cannot be built the catalog degrades to the root resource alone
// rather than failing the listing.
func (c *Catalog) Discover(ctx context.Context) []models.Resource {
	resources := []models.Resource{{
		URI:         Scheme + "://" + Authority + "/",
		Name:        "Vault root",
		Description: "All notes and folders in the vault",
		MIMEType:    "application/json",
	}}

	structure, err := c.vault.GetVaultStructure(ctx)
	if err != nil {
		c.log.Warn("resource discovery degraded to root", slog.Any("error", err))
		return resources
	}

	for _, f := range structure.Folders {
		resources = append(resources, models.Resource{
			URI:         BuildURI(f.Path) + "/",
			Name:        f.Name,
			Description: fmt.Sprintf("Folder with %d notes", f.NotesCount),
			MIMEType:    "application/json",
		})
	}
	for _, n := range structure.Notes {
		resources = append(resources, models.Resource{
			URI:         BuildURI(n.Path),
			Name:        n.Name,
			Description: "Note at " + n.Path,
			MIMEType:    "text/markdown",
		})
	}
	return resources
}

// Read resolves a resource URI to its content. Note URIs return the raw
// markdown; folder URIs return a JSON listing of the folder's direct
// children. Results are cached per URI.
func (c *Catalog) Read(ctx context.Context, uri string) (*models.ResourceContent, error) {
	c.mu.Lock()
	entry, ok := c.cache[uri]
	c.mu.Unlock()
	if ok && time.Since(entry.at) < c.ttl {
		return entry.content, nil
	}

	p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	var content *models.ResourceContent
	if IsFolderPath(p) {
		content, err = c.readFolder(ctx, uri, p)
	} else {
		content, err = c.readNote(ctx, uri, p)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[uri] = cacheEntry{content: content, at: time.Now()}
	c.mu.Unlock()
	return content, nil
}

func (c *Catalog) readNote(ctx context.Context, uri, p string) (*models.ResourceContent, error) {
	text, err := c.vault.ReadNote(ctx, p)
	if err != nil {
		return nil, err
	}
	return &models.ResourceContent{
		URI:      uri,
		MIMEType: "text/markdown",
		Text:     text,
		Metadata: map[string]any{"path": p},
	}, nil
}

func (c *Catalog) readFolder(ctx context.Context, uri, p string) (*models.ResourceContent, error) {
	contents, err := c.vault.GetFolderContents(ctx, strings.TrimSuffix(p, "/"))
	if err != nil {
		return nil, err
	}
	listing := map[string]any{
		"folder_path": contents.Path,
		"total_items": len(contents.Notes) + len(contents.Subfolders),
		"folders":     contents.Subfolders,
		"notes":       contents.Notes,
	}
	data, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("resources: encode folder %s: %w", p, err)
	}
	return &models.ResourceContent{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(data),
		Metadata: map[string]any{
			"path":       contents.Path,
			"notes":      len(contents.Notes),
			"subfolders": len(contents.Subfolders),
		},
	}, nil
}

// InvalidateCache drops cached reads whose URI contains pattern. Cached keys
// are escaped URIs, so the pattern is also matched against the decoded vault
// path; mutation callers pass raw note paths. An empty pattern drops
// everything.
func (c *Catalog) InvalidateCache(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pattern == "" {
		c.cache = map[string]cacheEntry{}
		return
	}
	for uri := range c.cache {
		if strings.Contains(uri, pattern) {
			delete(c.cache, uri)
			continue
		}
		if p, err := ParseURI(uri); err == nil && strings.Contains(p, pattern) {
			delete(c.cache, uri)
		}
	}
}
