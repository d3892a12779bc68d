//go:build integration

package qdrant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ingestion-service/internal/storage"
)

// setupTestStore connects to a local Qdrant. Skips test if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := New(ctx, Config{Host: "localhost", Port: 6334})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCollectionName() string {
	return fmt.Sprintf("bot_it_%d", time.Now().UnixNano())
}

func TestCreateAndGetCollection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := testCollectionName()

	_, err := s.GetCollection(ctx, name)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)

	c, err := s.CreateCollection(ctx, name, 4, storage.DistanceCosine)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Dimension)

	got, err := s.GetCollection(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, 4, got.Dimension)

	_, err = s.CreateCollection(ctx, name, 4, storage.DistanceCosine)
	assert.ErrorIs(t, err, storage.ErrCollectionExists)

	t.Cleanup(func() { _ = s.client.DeleteCollection(context.Background(), name) })
}

func TestGetCollectionRepairsPayloadIndexes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := testCollectionName()

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: 4, Distance: qdrant.Distance_Cosine}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.client.DeleteCollection(context.Background(), name) })

	_, err = s.GetCollection(ctx, name)
	require.NoError(t, err)

	info, err := s.client.GetCollectionInfo(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, missingPayloadIndexes(info))
}

func TestUpsertOverwritesSameID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := testCollectionName()

	c, err := s.CreateCollection(ctx, name, 4, storage.DistanceCosine)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.client.DeleteCollection(context.Background(), name) })

	id := uuid.NewString()
	rec := storage.Record{
		ID:       id,
		Vector:   []float32{0.1, 0.2, 0.3, 0.4},
		Text:     "first",
		Metadata: storage.ChunkMetadata{Filename: "a.md", TenantID: "it", SizeBytes: 5},
	}
	require.NoError(t, s.Upsert(ctx, c, []storage.Record{rec}))

	rec.Text = "second"
	require.NoError(t, s.Upsert(ctx, c, []storage.Record{rec}))

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := setupTestStore(t)
	c := &storage.Collection{Name: "unused", Dimension: 4, Distance: storage.DistanceCosine}

	err := s.Upsert(context.Background(), c, []storage.Record{{ID: uuid.NewString(), Vector: []float32{1}}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}
