// Package main provides the HTTP server for altron.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/altron-go/internal/api"
	"github.com/raphaelgruber/altron-go/internal/config"
	"github.com/raphaelgruber/altron-go/internal/db"
	"github.com/raphaelgruber/altron-go/internal/llm"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/service"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger("altron-server", cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting altron-server", "version", version, "port", cfg.ServerPort, "storage", cfg.Storage)

	collector := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := openStore(ctx, cfg, logger, collector, *wipeDB || os.Getenv("ALTRON_WIPE_DB") == "true")
	cancel()
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var (
		executor   service.Executor = service.EchoExecutor{Delay: 2 * time.Second}
		responder  service.Responder
		conversant service.Conversant
	)
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	model, err := llm.NewModel(ctx, cfg, collector)
	cancel()
	switch {
	case errors.Is(err, llm.ErrNoProvider):
		slog.Info("no LLM provider configured, jobs echo their description and replies are canned")
	case err != nil:
		slog.Error("failed to create LLM", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	default:
		slog.Info("LLM initialized", "provider", cfg.LLMProvider, "model", model.Model())
		executor = service.LLMExecutor{Runner: model}
		responder = model
		conversant = model
	}

	threads := service.NewThreadService(store, llm.NewTokenCounter(cfg.TokenModel), collector).WithConversant(conversant)
	jobs := service.NewJobManager(store, executor, cfg.JobConcurrency, collector)
	relay := service.NewRelayService(cfg.RelayBotName, responder, collector)

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = jobs.Start(ctx)
	cancel()
	if err != nil {
		slog.Error("failed to start job workers", "error", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      api.New(threads, jobs, relay, collector).Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("HTTP API available", "url", fmt.Sprintf("http://localhost:%s/", cfg.ServerPort))
		slog.Info("metrics available", "url", fmt.Sprintf("http://localhost:%s/metrics", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// openStore returns the configured backend and a func that releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, collector *metrics.Collector, wipe bool) (service.Store, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return db.NewMemoryStore(), func() {}, nil
	case config.StorageSurreal:
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}

	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, collector)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeFn := func() {
		if err := client.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}

	if err := client.InitSchema(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("initialize schema: %w", err)
	}
	if wipe {
		if err := client.WipeData(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("wipe database: %w", err)
		}
		slog.Warn("database wiped")
	}
	return client, closeFn, nil
}
