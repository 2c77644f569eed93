package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/altron-go/internal/metrics"
)

const (
	maxArgLogLen         = 200
	slowRequestThreshold = 100 * time.Millisecond
)

// LoggingMiddleware logs every MCP request and records its timing under
// metrics.OpMCPRequest. Tool calls are logged with the tool name and their
// arguments, and tool results flagged IsError bump CounterToolErrors.
func LoggingMiddleware(logger *slog.Logger, collector *metrics.Collector) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)
			collector.Record(metrics.OpMCPRequest, duration, err)

			attrs := []any{"method", method, "duration_ms", duration.Milliseconds()}
			if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
				attrs = append(attrs, "tool", call.Params.Name)
				if len(call.Params.Arguments) > 0 {
					attrs = append(attrs, "args", clip(string(call.Params.Arguments)))
				}
			} else if params := req.GetParams(); params != nil {
				if b, mErr := json.Marshal(params); mErr == nil {
					attrs = append(attrs, "params", clip(string(b)))
				}
			}

			switch {
			case err != nil:
				logger.Error("request failed", append(attrs, "error", err)...)
			case isToolError(result):
				collector.Inc(metrics.CounterToolErrors)
				logger.Warn("tool returned error", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

func isToolError(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}

func clip(s string) string {
	if len(s) <= maxArgLogLen {
		return s
	}
	return s[:maxArgLogLen-3] + "..."
}
