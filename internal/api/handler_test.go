package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ferrost/othala/internal/mcp"
	"github.com/ferrost/othala/internal/resources"
	"github.com/ferrost/othala/internal/testutil"
	"github.com/ferrost/othala/internal/tools"
	"github.com/ferrost/othala/internal/vault"
)

func testServer(t *testing.T, notes map[string]string, authToken string) *httptest.Server {
	t.Helper()
	root := testutil.SeedVault(t, notes)
	fake := testutil.NewFakeAPI(t, root, testutil.AuthBearer)
	vc, err := vault.New(vault.Config{APIURL: fake.URL(), APIKey: testutil.TestAPIKey, Path: root})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	catalog := resources.New(vc, 5*time.Minute, log)
	executor := tools.New(tools.Config{
		Vault:      vc,
		Log:        log,
		Templates:  true,
		Invalidate: catalog.InvalidateCache,
	})
	dispatcher := mcp.NewDispatcher(executor, catalog, mcp.ServerInfo{Name: "othala", Version: "test"}, log)
	router := NewRouter(RouterConfig{
		Dispatcher:    dispatcher,
		Encoder:       mcp.NewEncoder(64, 0),
		Vault:         vc,
		Log:           log,
		AuthToken:     authToken,
		ServerName:    "othala",
		ServerVersion: "test",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postMCP(t *testing.T, srv *httptest.Server, body string, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestParseErrorMapsTo400(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, "{not json", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	errObj := body["error"].(map[string]any)
	if errObj["code"].(float64) != -32700 {
		t.Errorf("code = %v, want -32700", errObj["code"])
	}
}

func TestInvalidEnvelopeMapsTo400(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, `{"jsonrpc":"1.0","id":1,"method":"ping"}`, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body["error"].(map[string]any)["code"].(float64) != -32600 {
		t.Errorf("body = %v", body)
	}
}

func TestUnknownMethodMapsTo404(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"no/such"}`, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body["error"].(map[string]any)["code"].(float64) != -32601 {
		t.Errorf("body = %v", body)
	}
}

func TestNotificationReturns204(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		t.Errorf("notification carried a body")
	}
}

func TestInitializeRoundTrip(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	result := body["result"].(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	if result["sessionId"] == "" {
		t.Error("no session id")
	}
}

func TestLargeToolResultStreams(t *testing.T) {
	big := strings.Repeat("lorem ipsum ", 200) // > 1KB
	srv := testServer(t, map[string]string{"big.md": big}, "")

	resp := postMCP(t, srv,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"obs_read_note","arguments":{"path":"big.md"}}}`,
		"text/event-stream")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	raw, err := io2string(resp)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}

	events := parseSSE(raw)
	if len(events) < 3 {
		t.Fatalf("events = %d, want head + frames + [DONE]", len(events))
	}

	// First event is the full JSON-RPC response.
	var head map[string]any
	if err := json.Unmarshal([]byte(events[0]), &head); err != nil {
		t.Fatalf("head not JSON: %v", err)
	}
	if head["jsonrpc"] != "2.0" || head["id"].(float64) != 7 {
		t.Errorf("head = %v", head)
	}

	// Then content frames terminated by a complete frame, then [DONE].
	if events[len(events)-1] != "[DONE]" {
		t.Errorf("last event = %q, want [DONE]", events[len(events)-1])
	}
	var terminator map[string]any
	if err := json.Unmarshal([]byte(events[len(events)-2]), &terminator); err != nil {
		t.Fatalf("terminator not JSON: %v", err)
	}
	if terminator["type"] != "complete" {
		t.Errorf("terminator = %v", terminator)
	}

	var reassembled strings.Builder
	for _, ev := range events[1 : len(events)-2] {
		var frame map[string]any
		if err := json.Unmarshal([]byte(ev), &frame); err != nil {
			t.Fatalf("frame not JSON: %v", err)
		}
		if frame["type"] != "content" {
			t.Errorf("frame type = %v", frame["type"])
		}
		reassembled.WriteString(frame["chunk"].(string))
	}
	if reassembled.String() != big {
		t.Error("streamed chunks do not reassemble the note")
	}
}

func TestSmallResultNotStreamed(t *testing.T) {
	srv := testServer(t, map[string]string{"small.md": "tiny"}, "")
	resp := postMCP(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"obs_read_note","arguments":{"path":"small.md"}}}`,
		"text/event-stream")
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("small result streamed: content type %q", ct)
	}
}

func TestToolsListStreamsWhenAccepted(t *testing.T) {
	srv := testServer(t, nil, "")
	resp := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "text/event-stream")
	defer resp.Body.Close()

	// Eleven tools exceeds the ten-item threshold.
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	raw, err := io2string(resp)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	events := parseSSE(raw)
	// head + 11 list items + complete + [DONE]
	if len(events) != 14 {
		t.Errorf("events = %d, want 14", len(events))
	}
}

func TestAuthTokenGuardsMCP(t *testing.T) {
	srv := testServer(t, nil, "secret")

	resp := postMCP(t, srv, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", authed.StatusCode)
	}

	// Health stays open.
	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", health.StatusCode)
	}
}

func TestServiceDescriptor(t *testing.T) {
	srv := testServer(t, nil, "")
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body := decodeResponse(t, resp)
	if body["protocol"] != "mcp" || body["name"] != "othala" {
		t.Errorf("descriptor = %v", body)
	}
}

// parseSSE splits a raw SSE body into the data payload of each event.
func parseSSE(raw string) []string {
	var events []string
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if payload, ok := strings.CutPrefix(block, "data: "); ok {
			events = append(events, payload)
		}
	}
	return events
}

func io2string(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}
