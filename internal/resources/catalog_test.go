package resources

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/testutil"
	"github.com/ferrost/othala/internal/vault"
)

func testCatalog(t *testing.T, notes map[string]string) (*Catalog, string) {
	t.Helper()
	root := testutil.SeedVault(t, notes)
	api := testutil.NewFakeAPI(t, root, testutil.AuthBearer)
	vc, err := vault.New(vault.Config{APIURL: api.URL(), APIKey: testutil.TestAPIKey, Path: root})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(vc, 5*time.Minute, log), root
}

func TestURIRoundTrip(t *testing.T) {
	paths := []string{
		"simple.md",
		"02_projects/alpha.md",
		"folder with spaces/note name.md",
		"06_daily-notes/2026-08-28.md",
		"deep/nested/tree/leaf.md",
	}
	for _, p := range paths {
		uri := BuildURI(p)
		if !strings.HasPrefix(uri, "obsidian://notes/") {
			t.Errorf("BuildURI(%q) = %q", p, uri)
		}
		got, err := ParseURI(uri)
		if err != nil {
			t.Errorf("ParseURI(%q): %v", uri, err)
			continue
		}
		if got != p {
			t.Errorf("round trip %q -> %q -> %q", p, uri, got)
		}
	}
}

func TestParseURIRejectsForeign(t *testing.T) {
	for _, uri := range []string{
		"http://notes/a.md",
		"obsidian://vault/a.md",
		"not a uri at all",
		"obsidian://notes/%zz",
	} {
		if _, err := ParseURI(uri); !errors.Is(err, apperr.ErrInvalidURI) {
			t.Errorf("ParseURI(%q): want ErrInvalidURI, got %v", uri, err)
		}
	}
}

func TestIsFolderPath(t *testing.T) {
	cases := map[string]bool{
		"":                     true,
		"02_projects/":         true,
		"02_projects":          true,
		"02_projects/alpha.md": false,
		"a/b/c.md":             false,
		"no-extension":         true,
	}
	for p, want := range cases {
		if got := IsFolderPath(p); got != want {
			t.Errorf("IsFolderPath(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestDiscover(t *testing.T) {
	c, _ := testCatalog(t, map[string]string{
		"02_projects/alpha.md": "alpha",
		"root.md":              "root",
	})

	resources := c.Discover(context.Background())
	if resources[0].URI != "obsidian://notes/" {
		t.Errorf("first resource = %q, want vault root", resources[0].URI)
	}

	var haveFolder, haveNote bool
	for _, r := range resources {
		switch r.URI {
		case "obsidian://notes/02_projects/":
			haveFolder = true
		case "obsidian://notes/02_projects/alpha.md":
			haveNote = true
		}
	}
	if !haveFolder || !haveNote {
		t.Errorf("missing resources (folder=%v note=%v): %+v", haveFolder, haveNote, resources)
	}
}

func TestReadNoteResource(t *testing.T) {
	c, _ := testCatalog(t, map[string]string{"02_projects/alpha.md": "# Alpha"})

	content, err := c.Read(context.Background(), "obsidian://notes/02_projects/alpha.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content.MIMEType != "text/markdown" || content.Text != "# Alpha" {
		t.Errorf("content = %+v", content)
	}

	if _, err := c.Read(context.Background(), "obsidian://notes/missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestReadFolderResource(t *testing.T) {
	c, _ := testCatalog(t, map[string]string{
		"02_projects/alpha.md": "alpha",
		"02_projects/beta.md":  "beta",
	})

	content, err := c.Read(context.Background(), "obsidian://notes/02_projects/")
	if err != nil {
		t.Fatalf("Read folder: %v", err)
	}
	if content.MIMEType != "application/json" {
		t.Errorf("mime = %q", content.MIMEType)
	}
	if !strings.Contains(content.Text, "alpha.md") || !strings.Contains(content.Text, "beta.md") {
		t.Errorf("folder listing missing notes: %s", content.Text)
	}
	if content.Metadata["notes"] != 2 {
		t.Errorf("metadata notes = %v", content.Metadata["notes"])
	}
}

func TestInvalidateMatchesDecodedPath(t *testing.T) {
	c, root := testCatalog(t, map[string]string{"02_projects/my note.md": "old content"})
	ctx := context.Background()
	uri := BuildURI("02_projects/my note.md")
	if !strings.Contains(uri, "%20") {
		t.Fatalf("uri = %q, expected escaped space", uri)
	}

	if _, err := c.Read(ctx, uri); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "02_projects", "my note.md"), []byte("new content"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Mutations invalidate with the raw vault path, not the escaped URI.
	c.InvalidateCache("02_projects/my note.md")
	content, err := c.Read(ctx, uri)
	if err != nil {
		t.Fatalf("Read after invalidate: %v", err)
	}
	if content.Text != "new content" {
		t.Errorf("text after invalidate = %q, want %q", content.Text, "new content")
	}
}

func TestReadCacheAndInvalidate(t *testing.T) {
	c, root := testCatalog(t, map[string]string{"a.md": "one"})
	ctx := context.Background()
	uri := "obsidian://notes/a.md"

	if _, err := c.Read(ctx, uri); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// Mutate behind the cache; the cached read must still see the old text.
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("two"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	content, err := c.Read(ctx, uri)
	if err != nil {
		t.Fatalf("Read cached: %v", err)
	}
	if content.Text != "one" {
		t.Errorf("cached text = %q, want %q", content.Text, "one")
	}

	// Invalidation by a non-matching pattern leaves the entry alone.
	c.InvalidateCache("zzz")
	content, _ = c.Read(ctx, uri)
	if content.Text != "one" {
		t.Errorf("entry dropped by non-matching pattern")
	}

	// A matching substring drops it.
	c.InvalidateCache("a.md")
	content, err = c.Read(ctx, uri)
	if err != nil {
		t.Fatalf("Read after invalidate: %v", err)
	}
	if content.Text != "two" {
		t.Errorf("text after invalidate = %q, want %q", content.Text, "two")
	}
}
