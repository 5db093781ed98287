// Package mcp implements the Model Context Protocol (MCP) server for
// ragarchive: it bridges AI clients to an open *ragstore.Store/ragsearch.
// Reader pair via JSON-RPC tools.
package mcp

import (
	"errors"
	"fmt"

	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// Standard and ragarchive-specific JSON-RPC error codes.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	ErrCodeFrameNotFound     = -32001
	ErrCodeWriterContention  = -32002
	ErrCodeCapacityExceeded  = -32003
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

// NewInvalidParamsError builds an MCPError for a malformed tool call.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts an internal error into an MCPError, preserving the
// ragerr taxonomy where possible.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ragErr *ragerr.Error
	if errors.As(err, &ragErr) {
		return mapRagError(ragErr)
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

func mapRagError(e *ragerr.Error) *MCPError {
	switch e.Kind {
	case ragerr.KindFrameNotFound:
		return &MCPError{Code: ErrCodeFrameNotFound, Message: e.Message}
	case ragerr.KindWriterContention:
		return &MCPError{Code: ErrCodeWriterContention, Message: e.Message}
	case ragerr.KindCapacityExceeded, ragerr.KindWALFull:
		return &MCPError{Code: ErrCodeCapacityExceeded, Message: e.Message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: e.Message}
	}
}
