// Package tools defines the closed set of MCP tools the server exposes and
// their executors over the vault client.
package tools

import "github.com/ferrost/othala/internal/models"

// Name identifies a tool. The set is closed: dispatch is an exhaustive
// switch over these constants, never a lookup on caller-supplied strings.
type Name string

const (
	Ping              Name = "ping"
	SearchNotes       Name = "obs_search_notes"
	ReadNote          Name = "obs_read_note"
	CreateNote        Name = "obs_create_note"
	UpdateNote        Name = "obs_update_note"
	AppendNote        Name = "obs_append_note"
	DeleteNote        Name = "obs_delete_note"
	ListNotes         Name = "obs_list_notes"
	GetVaultStructure Name = "obs_get_vault_structure"
	ExecuteCommand    Name = "obs_execute_command"
	KeywordSearch     Name = "obs_keyword_search"
)

func obj(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

// Registry is the static tool table served by tools/list, in a stable order.
var Registry = []models.Tool{
	{
		Name:        string(Ping),
		Description: "Check that the server and the vault API are reachable",
		InputSchema: obj(map[string]any{}),
	},
	{
		Name:        string(SearchNotes),
		Description: "Search notes via the vault's search index, with metadata enrichment",
		InputSchema: obj(map[string]any{
			"query":  str("Text to search for"),
			"folder": str("Restrict the search to this folder"),
		}, "query"),
	},
	{
		Name:        string(ReadNote),
		Description: "Read the full content of a note",
		InputSchema: obj(map[string]any{
			"path": str("Vault-relative note path, e.g. 02_projects/alpha.md"),
		}, "path"),
	},
	{
		Name:        string(CreateNote),
		Description: "Create a new note; fails if the note already exists. Typed folders get default frontmatter",
		InputSchema: obj(map[string]any{
			"path":                  str("Vault-relative path for the new note"),
			"content":               str("Initial note content; may be empty"),
			"create_parent_folders": boolean("Create missing parent folders"),
		}, "path"),
	},
	{
		Name:        string(UpdateNote),
		Description: "Replace the content of an existing note",
		InputSchema: obj(map[string]any{
			"path":            str("Vault-relative note path"),
			"content":         str("New note content"),
			"preserve_format": boolean("Keep the existing frontmatter when the new content has none"),
		}, "path", "content"),
	},
	{
		Name:        string(AppendNote),
		Description: "Append content to an existing note",
		InputSchema: obj(map[string]any{
			"path":      str("Vault-relative note path"),
			"content":   str("Content to append"),
			"separator": str("Separator inserted before the appended content; defaults to a blank line"),
		}, "path", "content"),
	},
	{
		Name:        string(DeleteNote),
		Description: "Delete a note from the vault",
		InputSchema: obj(map[string]any{
			"path": str("Vault-relative note path"),
		}, "path"),
	},
	{
		Name:        string(ListNotes),
		Description: "List note metadata, newest first, optionally scoped to a folder",
		InputSchema: obj(map[string]any{
			"folder":       str("List only notes under this folder"),
			"include_tags": boolean("Extract tags for each note"),
		}),
	},
	{
		Name:        string(GetVaultStructure),
		Description: "Return the vault's folder tree and note inventory",
		InputSchema: obj(map[string]any{
			"use_cache": boolean("Serve from the structure cache when fresh; default true"),
		}),
	},
	{
		Name:        string(ExecuteCommand),
		Description: "Execute an Obsidian command by its identifier",
		InputSchema: obj(map[string]any{
			"command":    str("Command identifier, e.g. app:reload"),
			"parameters": map[string]any{"type": "object", "description": "Command parameters"},
		}, "command"),
	},
	{
		Name:        string(KeywordSearch),
		Description: "Scan note contents for a keyword and return matches with surrounding context",
		InputSchema: obj(map[string]any{
			"keyword":        str("Keyword to look for"),
			"folder":         str("Restrict the scan to this folder"),
			"case_sensitive": boolean("Match case exactly"),
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum results, 1-50; default 20",
			},
		}, "keyword"),
	},
}
