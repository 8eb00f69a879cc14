// Package mcp exposes lexindex search over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// MCP error codes.
const (
	ErrCodeDocumentNotFound = -32004
	ErrCodeTimeout          = -32003
	ErrCodeUnavailable      = -32002

	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol-level error with a code and a client-safe message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error to an MCPError. Messages never
// carry causes.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var le *lexerrors.LexError
	if !errors.As(err, &le) {
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
	msg := lexerrors.PublicMessage(le)
	if le.Suggestion != "" {
		msg += " " + le.Suggestion
	}
	switch {
	case le.Code == lexerrors.ErrCodeDocumentNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: msg}
	case le.Category == lexerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case le.Category == lexerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeUnavailable, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}

// NewInvalidParamsError reports a bad tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError reports an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}
