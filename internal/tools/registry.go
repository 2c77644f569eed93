package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var readOnly = &mcp.ToolAnnotations{ReadOnlyHint: true}

// RegisterAll adds the thread tools to server. Call it before Run.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Liveness check. Responds with pong or the echo text, optionally after checking thread storage",
		Annotations: readOnly,
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_threads",
		Description: "List conversation threads, most recently updated first",
		Annotations: readOnly,
	}, NewListThreadsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_thread",
		Description: "Retrieve a thread with all of its messages",
		Annotations: readOnly,
	}, NewGetThreadHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_thread",
		Description: "Start a new, empty conversation thread",
	}, NewCreateThreadHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "append_message",
		Description: "Append a user or assistant message to the end of a thread. Messages cannot be edited or removed afterwards",
	}, NewAppendMessageHandler(deps))
}
