package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ingestion-service/internal/config"
	"github.com/bull/ingestion-service/internal/ingest"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	NewLogger(&buf, "bogus", "text").Info("fallback")
	assert.Contains(t, buf.String(), "msg=fallback")
}

func TestNewWithBadgerInMemory(t *testing.T) {
	cfg := &config.Config{
		VectorStore: config.StoreBadger,
		Embedding:   config.EmbeddingConfig{Provider: "deterministic", Dimension: 16},
		Chunk:       config.ChunkConfig{Size: 4, Overlap: 1},
	}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "deterministic", a.Resolver.Active())
	assert.Equal(t, 16, a.Resolver.Dimension())
	assert.Equal(t, 4, a.ChunkDefaults().Size)

	defaults := a.ChunkDefaults()
	result, err := a.Pipeline.Ingest(context.Background(), ingest.Request{
		TenantID:  "t1",
		Documents: []ingest.Document{{Filename: "a.txt", Text: "0123456789"}},
		ChunkSize: defaults.Size,
		Overlap:   defaults.Overlap,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.UpsertedEmbeddings)

	health := a.Checker.Check(context.Background())
	assert.True(t, health.Healthy())
}

func TestOpenStoreUnknown(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{VectorStore: "chroma"}, nil)
	assert.ErrorContains(t, err, "unknown vector store")
}
