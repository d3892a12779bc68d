// Package main provides the ingestion service entry point: the HTTP API with
// MCP at /mcp, or MCP over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/ingestion-service/internal/api"
	"github.com/bull/ingestion-service/internal/app"
	"github.com/bull/ingestion-service/internal/config"
	mcpserver "github.com/bull/ingestion-service/internal/mcp"
	"github.com/bull/ingestion-service/internal/observability"
)

const version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, warnings, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	// Stdout carries the MCP stream in stdio mode, so logs always go to stderr.
	logger := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn(w)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "ingestion-service",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(shutdownCtx)
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Ingester: a.Pipeline,
		Checker:  a.Checker,
		Defaults: a.ChunkDefaults(),
		Version:  version,
	})

	if cfg.ServerMode == config.ModeStdio {
		logger.Info("Starting MCP server (stdio mode)")
		return server.Run(ctx)
	}

	mux := api.NewRouter(api.RouterConfig{
		Ingester: a.Pipeline,
		Checker:  a.Checker,
		Defaults: a.ChunkDefaults(),
		MCP:      mcpserver.NewHTTPHandler(server, &mcpserver.HTTPHandlerOptions{Stateless: true}),
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "ingest", "/ingest", "health", "/health", "mcp", "/mcp")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
