package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger fans records out to stderr as text and to logFile as JSON.
// Every record carries an "app" attribute naming the binary. If the file
// cannot be opened the logger writes to stderr only. The returned func
// closes the file.
func SetupLogger(app, logFile string, level slog.Level) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level}
	stderrHandler := slog.NewTextHandler(os.Stderr, opts)

	if logFile == "" {
		return slog.New(stderrHandler).With("app", app), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler).With("app", app), func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(stderrHandler, slog.NewJSONHandler(file, opts)))
	return logger.With("app", app), file.Close
}

// NewLogger builds the same fanout over arbitrary writers.
func NewLogger(app string, text, jsonOut io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(text, opts),
		slog.NewJSONHandler(jsonOut, opts),
	)).With("app", app)
}
