package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo  string `json:"echo,omitempty" jsonschema:"Text to echo back instead of pong"`
	Store bool   `json:"store,omitempty" jsonschema:"Also check that thread storage answers"`
}

// NewPingHandler answers "pong", or the echo text. With Store set it lists
// threads first and reports how many exist.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		deps.Logger.Debug("ping", "echo", input.Echo, "store", input.Store)

		reply := "pong"
		if input.Echo != "" {
			reply = input.Echo
		}
		if !input.Store {
			return TextResult(reply), nil, nil
		}

		infos, err := deps.Threads.List(ctx)
		if err != nil {
			return threadError(deps, "Storage check", err), nil, nil
		}
		return TextResult(fmt.Sprintf("%s (%d threads)", reply, len(infos))), nil, nil
	}
}
