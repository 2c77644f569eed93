// Package main provides the entry point for the altron MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/altron-go/internal/config"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/llm"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/server"
	"github.com/raphaelgruber/altron-go/internal/service"
	"github.com/raphaelgruber/altron-go/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Stdout carries the MCP protocol, so logs go to stderr and the file.
	logger, closeLog := config.SetupLogger("altron-mcp", cfg.LogFile, cfg.LogLevel)
	defer closeLog()

	logger.Info("altron-mcp starting",
		"version", version,
		"storage", cfg.Storage,
		"surrealdb_url", cfg.SurrealDBURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	var store service.ThreadStore = db.NewMemoryStore()
	if cfg.Storage == config.StorageSurreal {
		dbClient, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger, collector)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()

		if err := dbClient.InitSchema(ctx); err != nil {
			logger.Error("failed to initialize database schema", "error", err)
			os.Exit(1)
		}
		store = dbClient
	}

	srv := server.New(version, logger, collector)
	srv.Setup()

	threads := service.NewThreadService(store, llm.NewTokenCounter(cfg.TokenModel), collector)
	deps := tools.NewDependencies(threads, logger)
	tools.RegisterAll(srv.MCPServer(), deps)

	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
