package tools

import (
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// ErrorResult returns an IsError result so the calling model can correct
// itself. A non-empty hint is appended as "{msg}. {hint}".
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// TextResult wraps plain text.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Could not encode result: "+err.Error(), "")
	}
	return TextResult(string(b))
}

// threadError maps a thread service error to a result the model can act on.
// Unexpected errors are logged and reported without detail.
func threadError(deps *Dependencies, op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrorResult("Thread not found", "Use list_threads to find valid ids")
	case errors.Is(err, db.ErrAlreadyExists):
		return ErrorResult("Message id already used in this thread", "Omit the id to have one generated")
	case models.IsValidation(err):
		return ErrorResult("Invalid message: "+err.Error(), "")
	}
	deps.Logger.Error(op+" failed", "error", err)
	return ErrorResult(op+" failed", "Storage may be unavailable")
}
