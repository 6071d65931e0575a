package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/parser"
	"github.com/ferrost/othala/internal/template"
	"github.com/ferrost/othala/internal/vault"
)

const (
	keywordContextRadius = 50
	keywordDefaultLimit  = 20
	keywordMaxLimit      = 50
)

// ContentItem is one element of a tool result's content list.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the envelope every tool execution produces. Failures are carried
// inside the envelope with IsError set; executors never leak raw errors to
// the dispatcher.
type Result struct {
	Content  []ContentItem  `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IsError  bool           `json:"isError,omitempty"`
}

func textResult(text string, metadata map[string]any) *Result {
	return &Result{Content: []ContentItem{{Type: "text", Text: text}}, Metadata: metadata}
}

func jsonResult(v any, metadata map[string]any) *Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return textResult(string(data), metadata)
}

func errorResult(err error) *Result {
	return &Result{
		Content: []ContentItem{{Type: "text", Text: "Error: " + err.Error()}},
		IsError: true,
	}
}

// Executor runs tools against the vault. The optional invalidate hook is
// called with a path substring after every mutation so resource caches keyed
// by URI can be dropped alongside the vault caches.
type Executor struct {
	vault         *vault.Client
	log           *slog.Logger
	templates     bool
	invalidate    func(pattern string)
	startedAt     time.Time
	serverName    string
	serverVersion string
}

// Config configures an Executor.
type Config struct {
	Vault         *vault.Client
	Log           *slog.Logger
	Templates     bool
	Invalidate    func(pattern string)
	ServerName    string
	ServerVersion string
}

// New creates an Executor.
func New(cfg Config) *Executor {
	inv := cfg.Invalidate
	if inv == nil {
		inv = func(string) {}
	}
	return &Executor{
		vault:         cfg.Vault,
		log:           cfg.Log,
		templates:     cfg.Templates,
		invalidate:    inv,
		startedAt:     time.Now(),
		serverName:    cfg.ServerName,
		serverVersion: cfg.ServerVersion,
	}
}

// Execute runs the named tool with the given arguments. Unknown names and
// argument failures come back as error results, never as Go errors.
func (e *Executor) Execute(ctx context.Context, name Name, args map[string]any) *Result {
	start := time.Now()
	var result *Result
	switch name {
	case Ping:
		result = e.ping(ctx)
	case SearchNotes:
		result = e.searchNotes(ctx, args)
	case ReadNote:
		result = e.readNote(ctx, args)
	case CreateNote:
		result = e.createNote(ctx, args)
	case UpdateNote:
		result = e.updateNote(ctx, args)
	case AppendNote:
		result = e.appendNote(ctx, args)
	case DeleteNote:
		result = e.deleteNote(ctx, args)
	case ListNotes:
		result = e.listNotes(ctx, args)
	case GetVaultStructure:
		result = e.vaultStructure(ctx, args)
	case ExecuteCommand:
		result = e.executeCommand(ctx, args)
	case KeywordSearch:
		result = e.keywordSearch(ctx, args)
	default:
		result = errorResult(fmt.Errorf("unknown tool %q", name))
	}
	e.log.Debug("tool executed",
		slog.String("tool", string(name)),
		slog.Bool("error", result.IsError),
		slog.Duration("took", time.Since(start)))
	return result
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func (e *Executor) ping(ctx context.Context) *Result {
	healthy := e.vault.Health(ctx)
	return jsonResult(map[string]any{
		"status":      "ok",
		"api_healthy": healthy,
		"uptime":      time.Since(e.startedAt).Round(time.Second).String(),
		"server":      e.serverName,
		"version":     e.serverVersion,
	}, nil)
}

func (e *Executor) searchNotes(ctx context.Context, args map[string]any) *Result {
	query := argString(args, "query")
	if err := validation.Validate(query, validation.Required); err != nil {
		return errorResult(fmt.Errorf("query: %w", err))
	}
	results, err := e.vault.SearchNotes(ctx, query, argString(args, "folder"))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(results.Hits, map[string]any{
		"query":   query,
		"total":   len(results.Hits),
		"skipped": results.Skipped,
	})
}

func (e *Executor) readNote(ctx context.Context, args map[string]any) *Result {
	path := argString(args, "path")
	if err := validation.Validate(path, validation.Required); err != nil {
		return errorResult(fmt.Errorf("path: %w", err))
	}
	content, err := e.vault.ReadNote(ctx, path)
	if err != nil {
		return errorResult(err)
	}
	return textResult(content, map[string]any{"path": path, "size": len(content)})
}

func (e *Executor) createNote(ctx context.Context, args map[string]any) *Result {
	path := argString(args, "path")
	if err := validation.Validate(path, validation.Required); err != nil {
		return errorResult(fmt.Errorf("path: %w", err))
	}
	content := argString(args, "content")
	applied := false
	if e.templates {
		scaffolded := template.Apply(path, content, time.Now())
		applied = scaffolded != content
		content = scaffolded
	}
	if err := e.vault.CreateNote(ctx, path, content, argBool(args, "create_parent_folders", false)); err != nil {
		return errorResult(err)
	}
	e.invalidate(strings.TrimPrefix(path, "/"))
	return textResult("Created note "+path, map[string]any{
		"path":             path,
		"template_applied": applied,
	})
}

func (e *Executor) updateNote(ctx context.Context, args map[string]any) *Result {
	path := argString(args, "path")
	content := argString(args, "content")
	errs := validation.Errors{
		"path":    validation.Validate(path, validation.Required),
		"content": validation.Validate(content, validation.Required),
	}
	if err := errs.Filter(); err != nil {
		return errorResult(err)
	}

	if argBool(args, "preserve_format", false) && !parser.HasFrontmatter(content) {
		existing, err := e.vault.ReadNote(ctx, path)
		if err != nil {
			return errorResult(err)
		}
		if fm := parser.FrontmatterBlock(existing); fm != "" {
			content = fm + "\n\n" + content
		}
	}

	if err := e.vault.UpdateNote(ctx, path, content); err != nil {
		return errorResult(err)
	}
	e.invalidate(strings.TrimPrefix(path, "/"))
	return textResult("Updated note "+path, map[string]any{"path": path})
}

func (e *Executor) appendNote(ctx context.Context, args map[string]any) *Result {
	path := argString(args, "path")
	content := argString(args, "content")
	errs := validation.Errors{
		"path":    validation.Validate(path, validation.Required),
		"content": validation.Validate(content, validation.Required),
	}
	if err := errs.Filter(); err != nil {
		return errorResult(err)
	}
	separator := "\n\n"
	if s, ok := args["separator"].(string); ok {
		separator = s
	}
	if err := e.vault.AppendNote(ctx, path, content, separator); err != nil {
		return errorResult(err)
	}
	e.invalidate(strings.TrimPrefix(path, "/"))
	return textResult("Appended to note "+path, map[string]any{"path": path})
}

func (e *Executor) deleteNote(ctx context.Context, args map[string]any) *Result {
	path := argString(args, "path")
	if err := validation.Validate(path, validation.Required); err != nil {
		return errorResult(fmt.Errorf("path: %w", err))
	}
	if err := e.vault.DeleteNote(ctx, path); err != nil {
		return errorResult(err)
	}
	e.invalidate(strings.TrimPrefix(path, "/"))
	return textResult("Deleted note "+path, map[string]any{"path": path})
}

func (e *Executor) listNotes(ctx context.Context, args map[string]any) *Result {
	notes, err := e.vault.ListNotes(ctx, argString(args, "folder"), argBool(args, "include_tags", false))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(notes, map[string]any{"total": len(notes)})
}

func (e *Executor) vaultStructure(ctx context.Context, args map[string]any) *Result {
	if !argBool(args, "use_cache", true) {
		e.vault.InvalidateCache()
	}
	structure, err := e.vault.GetVaultStructure(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(structure, map[string]any{
		"total_notes":   structure.TotalNotes,
		"total_folders": structure.TotalFolders,
	})
}

func (e *Executor) executeCommand(ctx context.Context, args map[string]any) *Result {
	command := argString(args, "command")
	if err := validation.Validate(command, validation.Required); err != nil {
		return errorResult(fmt.Errorf("command: %w", err))
	}
	params, _ := args["parameters"].(map[string]any)
	result, err := e.vault.ExecuteCommand(ctx, command, params)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(result, map[string]any{"command": command})
}

// KeywordMatch is one keyword-search hit with its surrounding context.
type KeywordMatch struct {
	Path     string    `json:"path"`
	Context  string    `json:"context"`
	Position int       `json:"position"`
	Modified time.Time `json:"modified"`
}

func (e *Executor) keywordSearch(ctx context.Context, args map[string]any) *Result {
	keyword := argString(args, "keyword")
	limit := argInt(args, "limit", keywordDefaultLimit)
	errs := validation.Errors{
		"keyword": validation.Validate(keyword, validation.Required),
		"limit":   validation.Validate(limit, validation.Min(1), validation.Max(keywordMaxLimit)),
	}
	if err := errs.Filter(); err != nil {
		return errorResult(err)
	}
	caseSensitive := argBool(args, "case_sensitive", false)

	notes, err := e.vault.ListNotes(ctx, argString(args, "folder"), false)
	if err != nil {
		return errorResult(err)
	}

	matches := make([]KeywordMatch, 0, limit)
	scanned := 0
	for _, note := range notes {
		if len(matches) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return errorResult(err)
		}
		content, err := e.vault.ReadNote(ctx, note.Path)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return errorResult(err)
		}
		scanned++

		idx, matchLen := strings.Index(content, keyword), len(keyword)
		if !caseSensitive {
			idx, matchLen = indexFold(content, keyword)
		}
		if idx < 0 {
			continue
		}
		matches = append(matches, KeywordMatch{
			Path:     note.Path,
			Context:  contextAround(content, idx, matchLen),
			Position: idx,
			Modified: note.Modified,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Modified.After(matches[j].Modified)
	})
	return jsonResult(matches, map[string]any{
		"keyword": keyword,
		"total":   len(matches),
		"scanned": scanned,
	})
}

// indexFold finds keyword in content ignoring case and returns the byte
// offset and matched length within content itself. Lowering the whole
// haystack would shift byte offsets for some Unicode (U+0130 grows when
// lowered), so the scan folds rune by rune instead.
func indexFold(content, keyword string) (idx, matchLen int) {
	if keyword == "" {
		return 0, 0
	}
	for i := 0; i < len(content); {
		if n := foldMatchLen(content[i:], keyword); n >= 0 {
			return i, n
		}
		_, w := utf8.DecodeRuneInString(content[i:])
		i += w
	}
	return -1, 0
}

// foldMatchLen reports how many bytes of s match keyword under simple case
// folding, or -1 when they diverge.
func foldMatchLen(s, keyword string) int {
	n := 0
	for _, kr := range keyword {
		r, w := utf8.DecodeRuneInString(s[n:])
		if w == 0 {
			return -1
		}
		if r != kr && unicode.ToLower(r) != unicode.ToLower(kr) {
			return -1
		}
		n += w
	}
	return n
}

// contextAround returns up to keywordContextRadius bytes on each side of the
// match, with ellipses marking truncation.
func contextAround(content string, idx, matchLen int) string {
	start := idx - keywordContextRadius
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + keywordContextRadius
	if end > len(content) {
		end = len(content)
	}
	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return strings.ReplaceAll(snippet, "\n", " ")
}
