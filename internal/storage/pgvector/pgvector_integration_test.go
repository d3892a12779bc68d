//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ingestion-service/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := New(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollectionAndUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := fmt.Sprintf("bot_it_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %q", name))
		s.pool.Exec(context.Background(), "DELETE FROM "+registryTable+" WHERE name = $1", name)
	})

	_, err := s.GetCollection(ctx, name)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)

	c, err := s.CreateCollection(ctx, name, 3, storage.DistanceCosine)
	require.NoError(t, err)

	_, err = s.CreateCollection(ctx, name, 3, storage.DistanceCosine)
	assert.ErrorIs(t, err, storage.ErrCollectionExists)

	got, err := s.GetCollection(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Dimension)

	rec := storage.Record{ID: "id-1", Vector: []float32{1, 0, 0}, Text: "first", Metadata: storage.ChunkMetadata{Filename: "a", TenantID: "it"}}
	require.NoError(t, s.Upsert(ctx, c, []storage.Record{rec}))
	rec.Text = "second"
	require.NoError(t, s.Upsert(ctx, c, []storage.Record{rec}))

	var count int
	var content string
	require.NoError(t, s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*), max(content) FROM %q", name)).Scan(&count, &content))
	assert.Equal(t, 1, count)
	assert.Equal(t, "second", content)
}
