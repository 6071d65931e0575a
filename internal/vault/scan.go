package vault

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ferrost/othala/internal/models"
	"github.com/ferrost/othala/internal/parser"
)

// tagProbeBytes is how much of a note is read when extracting tags during a
// scan. Frontmatter and leading inline tags fit comfortably; reading whole
// notes would make the scan cost proportional to vault content size.
const tagProbeBytes = 500

// ListNotes returns the metadata of every markdown note in the vault,
// optionally filtered to a folder prefix, sorted by modification time
// descending. Results come from the filesystem-notes cache when a fresh
// entry exists; a cached scan made without tags cannot serve a request that
// wants them, so such a hit is treated as a miss.
func (c *Client) ListNotes(ctx context.Context, folder string, includeTags bool) ([]models.NoteMetadata, error) {
	c.cacheMu.Lock()
	entry := c.notesCache
	c.cacheMu.Unlock()

	if entry != nil && time.Since(entry.at) < c.notesTTL && (!includeTags || entry.withTags) {
		return filterNotes(entry.notes, folder), nil
	}

	// The scan runs outside the lock. Concurrent misses may scan twice;
	// both results are equally valid and the later store wins.
	notes, err := c.scanNotes(ctx, includeTags)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.notesCache = &notesEntry{notes: notes, withTags: includeTags, at: time.Now()}
	c.cacheMu.Unlock()

	return filterNotes(notes, folder), nil
}

func (c *Client) scanNotes(ctx context.Context, includeTags bool) ([]models.NoteMetadata, error) {
	if c.vaultPath == "" {
		return nil, fmt.Errorf("vault: list notes: vault path not configured")
	}

	var notes []models.NoteMetadata
	err := filepath.WalkDir(c.vaultPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// Skip Obsidian internals and hidden directories.
			if name := d.Name(); path != c.vaultPath && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.vaultPath, path)
		if err != nil {
			return err
		}

		note := models.NoteMetadata{
			Path:     filepath.ToSlash(rel),
			Name:     strings.TrimSuffix(d.Name(), ".md"),
			Size:     info.Size(),
			Modified: info.ModTime(),
		}
		if includeTags {
			note.Tags = probeTags(path)
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: scan notes: %w", err)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Modified.After(notes[j].Modified)
	})
	return notes, nil
}

// probeTags reads the head of the note and extracts its tags. Unreadable
// notes yield no tags rather than failing the whole scan.
func probeTags(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	head := make([]byte, tagProbeBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return nil
	}
	return parser.ExtractTags(string(head[:n]))
}

// filterNotes narrows notes to those under the folder prefix. An empty
// folder returns the full slice. The returned slice is a copy so callers
// cannot mutate the cache.
func filterNotes(notes []models.NoteMetadata, folder string) []models.NoteMetadata {
	if folder == "" {
		out := make([]models.NoteMetadata, len(notes))
		copy(out, notes)
		return out
	}
	prefix := strings.TrimSuffix(normalizePath(folder), "/") + "/"
	out := make([]models.NoteMetadata, 0)
	for _, n := range notes {
		if strings.HasPrefix(n.Path, prefix) {
			out = append(out, n)
		}
	}
	return out
}
