package vault

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/models"
)

// GetVaultStructure returns the folder tree and note inventory of the vault,
// served from the structure cache when a fresh entry exists. The folder set
// is the union of the folders the store reports at the vault root and every
// ancestor directory derived from the scanned note paths, so a note can
// never reference a folder that is absent from the tree.
func (c *Client) GetVaultStructure(ctx context.Context) (*models.VaultStructure, error) {
	c.cacheMu.Lock()
	entry := c.structureCache
	c.cacheMu.Unlock()

	if entry != nil && time.Since(entry.at) < c.structureTTL {
		return entry.structure, nil
	}

	structure, err := c.buildStructure(ctx)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.structureCache = &structureEntry{structure: structure, at: time.Now()}
	c.cacheMu.Unlock()

	return structure, nil
}

func (c *Client) buildStructure(ctx context.Context) (*models.VaultStructure, error) {
	notes, err := c.ListNotes(ctx, "", false)
	if err != nil {
		return nil, err
	}

	folderSet := map[string]bool{}

	// Top-level folders as the store reports them; entries with a trailing
	// slash are folders, the rest are root-level files.
	if info, err := c.GetVaultInfo(ctx); err == nil {
		for _, f := range info.Files {
			if strings.HasSuffix(f, "/") {
				folderSet[strings.TrimSuffix(f, "/")] = true
			}
		}
	}

	// Ancestor folders derived from note paths.
	for _, n := range notes {
		for dir := path.Dir(n.Path); dir != "." && dir != "/"; dir = path.Dir(dir) {
			folderSet[dir] = true
		}
	}

	paths := make([]string, 0, len(folderSet))
	for p := range folderSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	folders := make([]models.FolderInfo, 0, len(paths))
	for _, p := range paths {
		parent := path.Dir(p)
		if parent == "." {
			parent = ""
		}
		folders = append(folders, models.FolderInfo{
			Path:            p,
			Name:            path.Base(p),
			Parent:          parent,
			NotesCount:      countDirectNotes(notes, p),
			SubfoldersCount: countDirectSubfolders(paths, p),
		})
	}

	return &models.VaultStructure{
		RootPath:     c.vaultPath,
		Folders:      folders,
		Notes:        notes,
		TotalNotes:   len(notes),
		TotalFolders: len(folders),
	}, nil
}

// countDirectNotes counts notes that live immediately in folder, not in any
// of its subfolders.
func countDirectNotes(notes []models.NoteMetadata, folder string) int {
	prefix := folder + "/"
	count := 0
	for _, n := range notes {
		rest, ok := strings.CutPrefix(n.Path, prefix)
		if ok && !strings.Contains(rest, "/") {
			count++
		}
	}
	return count
}

func countDirectSubfolders(paths []string, folder string) int {
	prefix := folder + "/"
	count := 0
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, prefix)
		if ok && !strings.Contains(rest, "/") {
			count++
		}
	}
	return count
}

// FolderContents is the listing of one folder: its immediate notes and
// subfolders.
type FolderContents struct {
	Path       string                `json:"path"`
	Notes      []models.NoteMetadata `json:"notes"`
	Subfolders []models.FolderInfo   `json:"subfolders"`
}

// GetFolderContents lists the direct children of folder. An empty folder
// path means the vault root. An unknown folder yields ErrNotFound.
func (c *Client) GetFolderContents(ctx context.Context, folder string) (*FolderContents, error) {
	structure, err := c.GetVaultStructure(ctx)
	if err != nil {
		return nil, err
	}

	folder = strings.TrimSuffix(normalizePath(folder), "/")
	if folder != "" {
		known := false
		for _, f := range structure.Folders {
			if f.Path == folder {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("vault: folder %s: %w", folder, apperr.ErrNotFound)
		}
	}

	contents := &FolderContents{Path: folder, Notes: []models.NoteMetadata{}, Subfolders: []models.FolderInfo{}}
	for _, n := range structure.Notes {
		if path.Dir(n.Path) == folder || (folder == "" && !strings.Contains(n.Path, "/")) {
			contents.Notes = append(contents.Notes, n)
		}
	}
	for _, f := range structure.Folders {
		if f.Parent == folder {
			contents.Subfolders = append(contents.Subfolders, f)
		}
	}
	return contents, nil
}

// Stats summarizes the vault for the stats surface.
type Stats struct {
	TotalNotes     int    `json:"total_notes"`
	TotalFolders   int    `json:"total_folders"`
	TotalBytes     int64  `json:"total_bytes"`
	LargestNote    string `json:"largest_note,omitempty"`
	MostRecentNote string `json:"most_recent_note,omitempty"`
	APIHealthy     bool   `json:"api_healthy"`
}

// GetStats aggregates counts and sizes over the current structure in one
// pass. It is not cached on its own; it rides the structure cache.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	structure, err := c.GetVaultStructure(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		TotalNotes:   structure.TotalNotes,
		TotalFolders: structure.TotalFolders,
		APIHealthy:   c.Health(ctx),
	}
	var largest int64 = -1
	var newest time.Time
	for _, n := range structure.Notes {
		stats.TotalBytes += n.Size
		if n.Size > largest {
			largest = n.Size
			stats.LargestNote = n.Path
		}
		if n.Modified.After(newest) {
			newest = n.Modified
			stats.MostRecentNote = n.Path
		}
	}
	return stats, nil
}
