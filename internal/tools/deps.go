// Package tools registers the MCP tools that expose conversation threads.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/altron-go/internal/service"
)

// Dependencies is captured by every tool handler.
type Dependencies struct {
	Threads *service.ThreadService
	Logger  *slog.Logger
}

// NewDependencies binds the thread service. A nil logger falls back to
// slog.Default.
func NewDependencies(threads *service.ThreadService, logger *slog.Logger) *Dependencies {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dependencies{Threads: threads, Logger: logger}
}
