// Package models defines the domain types for Othala.
package models

import "time"

// NoteMetadata is an immutable snapshot of one vault note, produced by a
// filesystem or API scan and replaced wholesale on every cache refresh.
// Tags stays nil unless tag extraction was explicitly requested.
type NoteMetadata struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Created  time.Time `json:"created,omitzero"`
	Tags     []string  `json:"tags,omitempty"`
}

// FolderInfo describes one vault folder. Parent is the path of the
// containing folder, or empty for a top-level folder. The counts are
// derived aggregates covering direct children only and are recomputed
// from scratch on every structure build.
type FolderInfo struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Parent          string `json:"parent,omitempty"`
	NotesCount      int    `json:"notes_count"`
	SubfoldersCount int    `json:"subfolders_count"`
}

// VaultStructure is a point-in-time aggregate of the whole vault.
// TotalNotes and TotalFolders always equal len(Notes) and len(Folders).
type VaultStructure struct {
	RootPath     string         `json:"root_path"`
	Folders      []FolderInfo   `json:"folders"`
	Notes        []NoteMetadata `json:"notes"`
	TotalNotes   int            `json:"total_notes"`
	TotalFolders int            `json:"total_folders"`
}

// Resource is an MCP-addressable unit derived from the vault structure.
// URIs use the obsidian://notes/<path> scheme; a trailing slash marks a
// folder resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// ResourceContent carries the payload of one read resource.
type ResourceContent struct {
	URI      string         `json:"uri"`
	MIMEType string         `json:"mimeType"`
	Text     string         `json:"text,omitempty"`
	Blob     []byte         `json:"blob,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tool is a static descriptor of one callable MCP operation. The set of
// tools is fixed at process start.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Prompt describes an MCP prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one argument accepted by a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}
