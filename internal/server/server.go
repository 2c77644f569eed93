// Package server runs the altron MCP server over stdio.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/altron-go/internal/metrics"
)

// Name is reported to MCP clients in the initialize handshake.
const Name = "altron"

// instructions tells MCP clients what the tools are for.
const instructions = "Read and write altron conversation threads. Use list_threads to find a thread id, get_thread to read it and append_message to add to it."

// Server is the MCP server plus the logger and collector its middleware uses.
type Server struct {
	mcp     *mcp.Server
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates the server. collector may be nil.
func New(version string, logger *slog.Logger, collector *metrics.Collector) *Server {
	impl := &mcp.Implementation{
		Name:    Name,
		Version: version,
	}

	return &Server{
		mcp:     mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		logger:  logger,
		metrics: collector,
	}
}

// Run serves on stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup adds the request logging middleware.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger, s.metrics))
}
