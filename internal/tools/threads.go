package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// ListThreadsInput defines the input schema for the list_threads tool.
type ListThreadsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max threads to list, default 20"`
}

// ThreadIDInput identifies a thread.
type ThreadIDInput struct {
	ThreadID string `json:"thread_id" jsonschema:"The thread id"`
}

// CreateThreadInput defines the input schema for the create_thread tool.
type CreateThreadInput struct {
	Title string `json:"title,omitempty" jsonschema:"Thread title, defaults to New Thread"`
}

// AppendMessageInput defines the input schema for the append_message tool.
type AppendMessageInput struct {
	ThreadID string         `json:"thread_id" jsonschema:"The thread id"`
	Role     string         `json:"role" jsonschema:"user or assistant"`
	Text     string         `json:"text,omitempty" jsonschema:"Message text, at most 8192 characters"`
	JSON     map[string]any `json:"json,omitempty" jsonschema:"Optional structured payload"`
}

// NewListThreadsHandler lists thread summaries, one per line.
func NewListThreadsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListThreadsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListThreadsInput) (*mcp.CallToolResult, any, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}

		infos, err := deps.Threads.List(ctx)
		if err != nil {
			return threadError(deps, "List threads", err), nil, nil
		}
		if len(infos) == 0 {
			return TextResult("No threads yet"), nil, nil
		}

		lines := make([]string, 0, min(limit, len(infos)))
		for _, info := range infos[:min(limit, len(infos))] {
			lines = append(lines, fmt.Sprintf("%s  %q  messages=%d tokens=%d updated=%s",
				info.ID, info.Title, info.MessageCount, info.TokenCount, info.UpdatedAt.Format("2006-01-02 15:04")))
		}
		deps.Logger.Debug("list_threads", "returned", len(lines), "total", len(infos))
		return TextResult(strings.Join(lines, "\n")), nil, nil
	}
}

// NewGetThreadHandler returns the full thread as JSON.
func NewGetThreadHandler(deps *Dependencies) mcp.ToolHandlerFor[ThreadIDInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ThreadIDInput) (*mcp.CallToolResult, any, error) {
		if input.ThreadID == "" {
			return ErrorResult("thread_id cannot be empty", "Use list_threads to find valid ids"), nil, nil
		}
		thread, err := deps.Threads.Get(ctx, input.ThreadID)
		if err != nil {
			return threadError(deps, "Get thread", err), nil, nil
		}
		return JSONResult(thread), nil, nil
	}
}

// NewCreateThreadHandler creates an empty thread.
func NewCreateThreadHandler(deps *Dependencies) mcp.ToolHandlerFor[CreateThreadInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CreateThreadInput) (*mcp.CallToolResult, any, error) {
		thread, err := deps.Threads.Create(ctx, input.Title)
		if err != nil {
			return threadError(deps, "Create thread", err), nil, nil
		}
		return TextResult(fmt.Sprintf("Created thread %s (%q)", thread.ID, thread.Title)), nil, nil
	}
}

// NewAppendMessageHandler appends a message with a generated id and the
// current time.
func NewAppendMessageHandler(deps *Dependencies) mcp.ToolHandlerFor[AppendMessageInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AppendMessageInput) (*mcp.CallToolResult, any, error) {
		if input.ThreadID == "" {
			return ErrorResult("thread_id cannot be empty", "Use list_threads to find valid ids"), nil, nil
		}

		content := models.MessageContent{}
		if input.Text != "" {
			content = models.TextContent(input.Text)
		}
		if len(input.JSON) > 0 {
			content.JSON = input.JSON
		}

		msg, err := deps.Threads.Append(ctx, input.ThreadID, models.Message{
			Role:    models.Role(input.Role),
			Content: content,
		})
		if err != nil {
			return threadError(deps, "Append message", err), nil, nil
		}
		return JSONResult(msg), nil, nil
	}
}
