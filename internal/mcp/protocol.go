// Package mcp implements the Model Context Protocol layer: JSON-RPC 2.0
// envelopes, the method dispatcher with its session state, and the chunked
// streaming encoder.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Method names form a closed set; dispatch is an exhaustive switch.
type Method string

const (
	MethodInitialize    Method = "initialize"
	MethodPing          Method = "ping"
	MethodToolsList     Method = "tools/list"
	MethodToolsCall     Method = "tools/call"
	MethodResourcesList Method = "resources/list"
	MethodResourcesRead Method = "resources/read"
	MethodPromptsList   Method = "prompts/list"
	MethodPromptsGet    Method = "prompts/get"
	MethodInitialized   Method = "notifications/initialized"
)

// Request is a JSON-RPC 2.0 request envelope. A nil ID marks a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  Method          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Validate checks the envelope invariants that make the request
// processable at all.
func (r *Request) Validate() *Error {
	if r.JSONRPC != "2.0" {
		return NewError(CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", r.JSONRPC))
	}
	if r.Method == "" {
		return NewError(CodeInvalidRequest, "missing method")
	}
	return nil
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Err is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// NewError builds an Error value.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewResponse wraps a result for the given request ID.
func NewResponse(id, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse wraps an error for the given request ID.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Err: err}
}
