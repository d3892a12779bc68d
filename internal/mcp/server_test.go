package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ingestion-service/internal/api"
	"github.com/bull/ingestion-service/internal/embedding"
	"github.com/bull/ingestion-service/internal/ingest"
	"github.com/bull/ingestion-service/internal/storage"
	"github.com/bull/ingestion-service/internal/storage/badger"
)

type stubIngester struct {
	got ingest.Request
	err error
}

func (s *stubIngester) Ingest(_ context.Context, req ingest.Request) (*ingest.Result, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &ingest.Result{TenantID: req.TenantID, UpsertedEmbeddings: 2, Documents: len(req.Documents), Degraded: 1}, nil
}

type stubStore struct{ err error }

func (s stubStore) Health(context.Context) error { return s.err }

func intPtr(v int) *int { return &v }

var defaults = api.ChunkDefaults{Size: 600, Overlap: 80}

func TestIngestHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		ing := &stubIngester{}
		handler := makeIngestHandler(ing, defaults)

		_, out, err := handler(ctx, nil, IngestDocumentsInput{
			TenantID:  "t1",
			Documents: []ingest.Document{{Filename: "a", Text: "b"}},
		})
		require.NoError(t, err)
		assert.Equal(t, IngestDocumentsOutput{TenantID: "t1", UpsertedEmbeddings: 2, Documents: 1, Degraded: 1}, out)
		assert.Equal(t, 600, ing.got.ChunkSize)
		assert.Equal(t, 80, ing.got.Overlap)
	})

	t.Run("passes explicit chunking", func(t *testing.T) {
		ing := &stubIngester{}
		handler := makeIngestHandler(ing, defaults)

		_, _, err := handler(ctx, nil, IngestDocumentsInput{TenantID: "t1", ChunkSize: intPtr(4), Overlap: intPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, 4, ing.got.ChunkSize)
		assert.Equal(t, 1, ing.got.Overlap)
	})

	t.Run("keeps explicit zeros", func(t *testing.T) {
		ing := &stubIngester{}
		handler := makeIngestHandler(ing, defaults)

		_, _, err := handler(ctx, nil, IngestDocumentsInput{TenantID: "t1", ChunkSize: intPtr(0), Overlap: intPtr(0)})
		require.NoError(t, err)
		assert.Equal(t, 0, ing.got.ChunkSize)
		assert.Equal(t, 0, ing.got.Overlap)
	})

	t.Run("reports failure cause", func(t *testing.T) {
		ing := &stubIngester{err: &ingest.Error{Stage: ingest.StageUpsert, Err: errors.New("disk full")}}
		handler := makeIngestHandler(ing, defaults)

		_, _, err := handler(ctx, nil, IngestDocumentsInput{TenantID: "t1"})
		require.Error(t, err)
		assert.Equal(t, "Ingestion failed: disk full", err.Error())
	})

	t.Run("stores through the pipeline", func(t *testing.T) {
		store, err := badger.OpenInMemory()
		require.NoError(t, err)
		defer store.Close()

		resolver := embedding.NewResolverWithProviders(nil, 8, nil)
		pipeline := ingest.NewPipeline(resolver, storage.NewCollectionManager(store, 8, nil), store, nil)
		handler := makeIngestHandler(pipeline, defaults)

		_, out, err := handler(ctx, nil, IngestDocumentsInput{
			TenantID:  "t1",
			Documents: []ingest.Document{{Filename: "a.txt", Text: "0123456789"}},
			ChunkSize: intPtr(4),
			Overlap:   intPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.UpsertedEmbeddings)
	})
}

type stubProvider struct{}

func (stubProvider) Active() string { return "openai" }

func (stubProvider) PingLocal(context.Context) (bool, error) { return false, nil }

func TestStatusHandler(t *testing.T) {
	handler := makeStatusHandler(&api.Checker{Store: stubStore{}, Provider: stubProvider{}})
	_, out, err := handler(context.Background(), nil, GetStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "openai", out.ModelProvider)
	assert.Equal(t, "connected", out.Store)
	assert.Empty(t, out.LocalService)

	handler = makeStatusHandler(&api.Checker{Store: stubStore{err: storage.ErrStoreUnreachable}, Provider: stubProvider{}})
	_, out, err = handler(context.Background(), nil, GetStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", out.Status)
	assert.Equal(t, "disconnected", out.Store)
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(&Config{
		Ingester: &stubIngester{},
		Checker:  &api.Checker{Store: stubStore{}, Provider: stubProvider{}},
		Defaults: defaults,
	})
	require.NotNil(t, s.MCPServer())
	assert.NotNil(t, NewHTTPHandler(s, &HTTPHandlerOptions{Stateless: true}))
}
