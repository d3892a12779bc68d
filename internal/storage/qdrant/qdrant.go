// Package qdrant implements the collection store on Qdrant over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/ingestion-service/internal/storage"
)

// Config holds connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// payloadIndexFields are indexed as keywords on every collection.
var payloadIndexFields = []string{"filename", "tenant_id"}

// Store wraps the Qdrant client with connection management and health checks.
type Store struct {
	client *qdrant.Client
	cfg    Config
}

var _ storage.Store = (*Store)(nil)

// New creates a Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, cfg: cfg}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreUnreachable, err)
	}

	return s, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newBackoff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// GetCollection returns the named collection or storage.ErrCollectionNotFound.
// Payload indexes missing from an existing collection are created.
func (s *Store) GetCollection(ctx context.Context, name string) (*storage.Collection, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil, storage.ErrCollectionNotFound
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	if missing := missingPayloadIndexes(info); len(missing) > 0 {
		if err := s.createPayloadIndexes(ctx, name, missing); err != nil {
			return nil, fmt.Errorf("failed to repair payload indexes: %w", err)
		}
	}

	return &storage.Collection{
		Name:      name,
		Dimension: vectorSize(info),
		Distance:  storage.DistanceCosine,
	}, nil
}

// missingPayloadIndexes lists the indexed fields absent from the collection schema.
func missingPayloadIndexes(info *qdrant.CollectionInfo) []string {
	schema := info.GetPayloadSchema()
	var missing []string
	for _, field := range payloadIndexFields {
		if _, ok := schema[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// vectorSize returns the dimension of the collection's unnamed vector, or 0
// if the collection uses named vectors.
func vectorSize(info *qdrant.CollectionInfo) int {
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
}

// CreateCollection creates a collection with cosine distance and keyword payload
// indexes. It returns storage.ErrCollectionExists if the collection appeared concurrently.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, distance storage.Distance) (*storage.Collection, error) {
	if distance != storage.DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", distance)
	}

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return nil, storage.ErrCollectionExists
		}
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	if err := s.createPayloadIndexes(ctx, name, payloadIndexFields); err != nil {
		return nil, fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return &storage.Collection{Name: name, Dimension: dimension, Distance: distance}, nil
}

// createPayloadIndexes creates keyword indexes for fields. Creating an index
// that already exists succeeds.
func (s *Store) createPayloadIndexes(ctx context.Context, collection string, fields []string) error {
	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Upsert writes every record in one request and waits for it to be applied.
// Transport errors are retried with backoff; ids are deterministic so a retry
// overwrites rather than duplicates.
func (s *Store) Upsert(ctx context.Context, collection *storage.Collection, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(collection, records); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		payload := r.Metadata.Map()
		payload["text"] = r.Text

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection.Name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// isTransient reports gRPC availability problems worth retrying.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Unavailable") || strings.Contains(msg, "DeadlineExceeded")
}
