package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/models"
	"github.com/ferrost/othala/internal/prompts"
	"github.com/ferrost/othala/internal/resources"
	"github.com/ferrost/othala/internal/tools"
)

// ServerInfo identifies the server in initialize and ping results.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the response payload for initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	SessionID       string         `json:"sessionId"`
}

// PingResult is the response payload for ping.
type PingResult struct {
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	ServerInfo ServerInfo `json:"serverInfo"`
}

// ToolsListResult is the response payload for tools/list.
type ToolsListResult struct {
	Tools []models.Tool `json:"tools"`
}

// ToolsCallParams are the parameters of tools/call.
type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ResourcesListResult is the response payload for resources/list.
type ResourcesListResult struct {
	Resources []models.Resource `json:"resources"`
}

// ResourcesReadParams are the parameters of resources/read.
type ResourcesReadParams struct {
	URI string `json:"uri"`
}

// ResourcesReadResult is the response payload for resources/read.
type ResourcesReadResult struct {
	Contents []models.ResourceContent `json:"contents"`
}

// PromptsListResult is the response payload for prompts/list.
type PromptsListResult struct {
	Prompts []models.Prompt `json:"prompts"`
}

// PromptsGetParams are the parameters of prompts/get.
type PromptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Dispatcher routes JSON-RPC requests to their handlers and owns the MCP
// session state.
type Dispatcher struct {
	executor *tools.Executor
	catalog  *resources.Catalog
	info     ServerInfo
	log      *slog.Logger

	mu          sync.Mutex
	sessionID   string
	initialized bool

	// resourceMu guards the in-process resource listing, a second cache
	// level above the catalog's per-URI read cache. Populated lazily on
	// the first resources/* call.
	resourceMu   sync.Mutex
	resourceList []models.Resource
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(executor *tools.Executor, catalog *resources.Catalog, info ServerInfo, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		catalog:  catalog,
		info:     info,
		log:      log,
	}
}

// Initialized reports whether the client has confirmed initialization.
func (d *Dispatcher) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// SessionID returns the session identifier minted by initialize, or empty.
func (d *Dispatcher) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// InvalidateResources drops the cached resource listing so the next
// resources/* call rebuilds it.
func (d *Dispatcher) InvalidateResources() {
	d.resourceMu.Lock()
	d.resourceList = nil
	d.resourceMu.Unlock()
}

// Dispatch routes one request. Notifications return (nil, true): the caller
// must suppress the response body. All failures come back as JSON-RPC error
// responses; Dispatch never returns a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response, notification bool) {
	if errv := req.Validate(); errv != nil {
		return NewErrorResponse(req.ID, errv), false
	}

	d.log.Debug("dispatch", slog.String("method", string(req.Method)), slog.Any("id", req.ID))

	switch req.Method {
	case MethodInitialize:
		return NewResponse(req.ID, d.initialize()), false
	case MethodPing:
		return NewResponse(req.ID, d.ping()), false
	case MethodToolsList:
		return NewResponse(req.ID, &ToolsListResult{Tools: tools.Registry}), false
	case MethodToolsCall:
		return d.toolsCall(ctx, req), false
	case MethodResourcesList:
		return NewResponse(req.ID, &ResourcesListResult{Resources: d.resourceListing(ctx)}), false
	case MethodResourcesRead:
		return d.resourcesRead(ctx, req), false
	case MethodPromptsList:
		return NewResponse(req.ID, &PromptsListResult{Prompts: prompts.List()}), false
	case MethodPromptsGet:
		return d.promptsGet(req), false
	case MethodInitialized:
		d.mu.Lock()
		d.initialized = true
		d.mu.Unlock()
		d.log.Info("session initialized", slog.String("session_id", d.SessionID()))
		return nil, true
	default:
		// Unrecognized fire-and-forget notifications (notifications/cancelled
		// and friends) are acknowledged silently rather than errored.
		if req.IsNotification() && strings.HasPrefix(string(req.Method), "notifications/") {
			d.log.Debug("ignoring notification", slog.String("method", string(req.Method)))
			return nil, true
		}
		return NewErrorResponse(req.ID, NewError(CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))), false
	}
}

func (d *Dispatcher) initialize() *InitializeResult {
	d.mu.Lock()
	if d.sessionID == "" {
		d.sessionID = uuid.NewString()
	}
	id := d.sessionID
	d.mu.Unlock()

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{"listChanged": true},
			"resources": map[string]any{"listChanged": true, "subscribe": true},
			"prompts":   map[string]any{"listChanged": true},
			"logging":   map[string]any{},
		},
		ServerInfo: d.info,
		SessionID:  id,
	}
}

func (d *Dispatcher) ping() *PingResult {
	return &PingResult{
		Message:    "pong",
		Timestamp:  time.Now().UTC(),
		ServerInfo: d.info,
	}
}

func (d *Dispatcher) toolsCall(ctx context.Context, req *Request) *Response {
	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, NewError(CodeInvalidParams, "malformed tools/call params: "+err.Error()))
	}
	if params.Name == "" {
		return NewErrorResponse(req.ID, NewError(CodeInvalidParams, "missing tool name"))
	}
	result := d.executor.Execute(ctx, tools.Name(params.Name), params.Arguments)
	return NewResponse(req.ID, result)
}

func (d *Dispatcher) resourceListing(ctx context.Context) []models.Resource {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()
	if d.resourceList == nil {
		d.resourceList = d.catalog.Discover(ctx)
	}
	return d.resourceList
}

func (d *Dispatcher) resourcesRead(ctx context.Context, req *Request) *Response {
	var params ResourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, NewError(CodeInvalidParams, "malformed resources/read params: "+err.Error()))
	}
	if params.URI == "" {
		return NewErrorResponse(req.ID, NewError(CodeInvalidParams, "missing resource uri"))
	}

	content, err := d.catalog.Read(ctx, params.URI)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err))
	}
	return NewResponse(req.ID, &ResourcesReadResult{Contents: []models.ResourceContent{*content}})
}

func (d *Dispatcher) promptsGet(req *Request) *Response {
	var params PromptsGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, NewError(CodeInvalidParams, "malformed prompts/get params: "+err.Error()))
	}
	result, err := prompts.Get(params.Name, params.Arguments)
	if err != nil {
		return NewErrorResponse(req.ID, mapError(err))
	}
	return NewResponse(req.ID, result)
}

// mapError translates domain errors into JSON-RPC error values.
func mapError(err error) *Error {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrInvalidURI):
		return NewError(CodeInvalidParams, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return NewError(CodeInvalidParams, err.Error())
	default:
		return NewError(CodeInternalError, err.Error())
	}
}
