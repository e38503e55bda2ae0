// Package mcpserver exposes the indexer over the Model Context Protocol,
// giving editor/agent clients a search and status surface alongside the
// CLI (spec.md §6 ExternalInterfaces).
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragidx/ragidx/internal/rerrors"
)

// JSON-RPC error codes, standard plus a ragidx-specific range.
const (
	ErrCodeNotFound      = -32001
	ErrCodeCollection    = -32002
	ErrCodeTimeout       = -32003
	ErrCodeVerification  = -32004

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error into an MCPError, matching on
// rerrors.Kind when the error carries one.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var rerr *rerrors.Error
	if errors.As(err, &rerr) {
		return mapKind(rerr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was canceled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapKind(e *rerrors.Error) *MCPError {
	switch e.Kind {
	case rerrors.KindNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: e.Error()}
	case rerrors.KindCollection:
		return &MCPError{Code: ErrCodeCollection, Message: e.Error()}
	case rerrors.KindVerification:
		return &MCPError{Code: ErrCodeVerification, Message: e.Error()}
	case rerrors.KindFilter:
		return &MCPError{Code: ErrCodeInvalidParams, Message: e.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: e.Error()}
	}
}

// NewInvalidParamsError builds an invalid-params MCPError with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError builds a method-not-found MCPError for an unknown tool name.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
