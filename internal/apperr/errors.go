// Package apperr defines the error taxonomy shared across Othala layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidURI      = errors.New("invalid uri")
)

// UpstreamError wraps a failure reported by the vault REST API. The original
// status code and response body are preserved for diagnostics.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream: %s", e.Message)
}

// Upstream builds an UpstreamError from a status code and message.
func Upstream(status int, message string) *UpstreamError {
	return &UpstreamError{StatusCode: status, Message: message}
}
