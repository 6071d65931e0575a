// Package api is the HTTP boundary: the /mcp JSON-RPC endpoint with its SSE
// streaming path, plus the health and service-descriptor endpoints.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ferrost/othala/internal/mcp"
	"github.com/ferrost/othala/internal/tools"
)

const (
	streamTextThreshold = 1024
	streamItemThreshold = 10
	// doneSentinel closes every SSE stream, after the complete frame.
	doneSentinel = "data: [DONE]\n\n"
)

// MCPHandler serves POST /mcp.
type MCPHandler struct {
	dispatcher *mcp.Dispatcher
	encoder    *mcp.Encoder
	log        *slog.Logger
}

// NewMCPHandler creates the /mcp handler.
func NewMCPHandler(d *mcp.Dispatcher, e *mcp.Encoder, log *slog.Logger) *MCPHandler {
	return &MCPHandler{dispatcher: d, encoder: e, log: log}
}

func (h *MCPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, nil, mcp.NewError(mcp.CodeParseError, "cannot read request body"))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, nil, mcp.NewError(mcp.CodeParseError, "malformed JSON: "+err.Error()))
		return
	}

	start := time.Now()
	resp, notification := h.dispatcher.Dispatch(r.Context(), &req)
	h.log.Info("mcp request",
		slog.String("method", string(req.Method)),
		slog.Bool("notification", notification),
		slog.Duration("took", time.Since(start)))

	if notification {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if resp.Err != nil {
		h.writeError(w, statusForCode(resp.Err.Code), resp.ID, resp.Err)
		return
	}

	if wantsStream(r) {
		if text, ok := streamableText(resp.Result); ok {
			h.streamResponse(w, r, resp, h.encoder.Stream(r.Context(), text))
			return
		}
		if items, ok := streamableList(resp.Result); ok {
			h.streamResponse(w, r, resp, h.encoder.StreamList(r.Context(), items))
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MCPHandler) writeError(w http.ResponseWriter, status int, id any, errv *mcp.Error) {
	writeJSON(w, status, mcp.NewErrorResponse(id, errv))
}

// streamResponse writes the full JSON-RPC response as the first SSE event,
// then the encoder's frames, then the transport sentinel. The client's
// disconnect cancels r.Context, which stops the encoder goroutine feeding
// frames.
func (h *MCPHandler) streamResponse(w http.ResponseWriter, r *http.Request, resp *mcp.Response, frames <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	head, err := json.Marshal(resp)
	if err != nil {
		h.log.Error("encode stream head", slog.Any("error", err))
		return
	}
	writeEvent(w, head)
	flusher.Flush()

	for frame := range frames {
		writeEvent(w, frame)
		flusher.Flush()
	}

	if r.Context().Err() == nil {
		_, _ = io.WriteString(w, doneSentinel)
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, data []byte) {
	_, _ = io.WriteString(w, "data: ")
	_, _ = w.Write(data)
	_, _ = io.WriteString(w, "\n\n")
}

func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// streamableText extracts the text of a tool result when it is big enough
// to stream.
func streamableText(result any) (string, bool) {
	tr, ok := result.(*tools.Result)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, item := range tr.Content {
		b.WriteString(item.Text)
	}
	if b.Len() <= streamTextThreshold {
		return "", false
	}
	return b.String(), true
}

// streamableList boxes a large tools or resources listing for the encoder.
func streamableList(result any) ([]any, bool) {
	switch v := result.(type) {
	case *mcp.ToolsListResult:
		if len(v.Tools) <= streamItemThreshold {
			return nil, false
		}
		items := make([]any, len(v.Tools))
		for i, t := range v.Tools {
			items[i] = t
		}
		return items, true
	case *mcp.ResourcesListResult:
		if len(v.Resources) <= streamItemThreshold {
			return nil, false
		}
		items := make([]any, len(v.Resources))
		for i, res := range v.Resources {
			items[i] = res
		}
		return items, true
	}
	return nil, false
}

func statusForCode(code int) int {
	switch code {
	case mcp.CodeParseError, mcp.CodeInvalidRequest, mcp.CodeInvalidParams:
		return http.StatusBadRequest
	case mcp.CodeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
