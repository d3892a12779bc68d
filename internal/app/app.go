// Package app wires configuration into the running components shared by the
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/ingestion-service/internal/api"
	"github.com/bull/ingestion-service/internal/config"
	"github.com/bull/ingestion-service/internal/embedding"
	"github.com/bull/ingestion-service/internal/ingest"
	"github.com/bull/ingestion-service/internal/storage"
	"github.com/bull/ingestion-service/internal/storage/badger"
	"github.com/bull/ingestion-service/internal/storage/pgvector"
	"github.com/bull/ingestion-service/internal/storage/qdrant"
)

// App holds the components built from a Config.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Resolver *embedding.Resolver
	Pipeline *ingest.Pipeline
	Checker  *api.Checker
	Logger   *slog.Logger
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New opens the configured store and builds the provider chain and pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	pc, err := cfg.Provider()
	if err != nil {
		store.Close()
		return nil, err
	}
	resolver, err := embedding.NewResolver(pc, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build embedding providers: %w", err)
	}

	manager := storage.NewCollectionManager(store, resolver.Dimension(), logger)
	pipeline := ingest.NewPipeline(resolver, manager, store, logger)

	logger.Info("Components ready",
		"store", cfg.VectorStore,
		"provider", resolver.Active(),
		"dimension", resolver.Dimension(),
	)

	return &App{
		Config:   cfg,
		Store:    store,
		Resolver: resolver,
		Pipeline: pipeline,
		Checker:  &api.Checker{Store: store, Provider: resolver, Timeout: 3 * time.Second},
		Logger:   logger,
	}, nil
}

// ChunkDefaults returns the configured chunking for requests that omit it.
func (a *App) ChunkDefaults() api.ChunkDefaults {
	return api.ChunkDefaults{Size: a.Config.Chunk.Size, Overlap: a.Config.Chunk.Overlap}
}

// Close releases the provider pools and the store.
func (a *App) Close() error {
	return errors.Join(a.Resolver.Close(), a.Store.Close())
}

// OpenStore opens the collection store named by cfg.VectorStore.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.VectorStore {
	case config.StoreQdrant:
		s, err := qdrant.New(ctx, qdrant.Config{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Qdrant.Host, cfg.Qdrant.Port, err)
		}
		return s, nil
	case config.StorePgvector:
		s, err := pgvector.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return s, nil
	case config.StoreBadger, "":
		s, err := badger.Open(cfg.StorePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger store at %q: %w", cfg.StorePath, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}
