// Package pgvector implements the collection store on PostgreSQL with the
// pgvector extension. Each collection is its own table; a registry table
// records the dimension it was created with.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bull/ingestion-service/internal/storage"
)

const registryTable = "ingestion_collections"

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects to connString, enables the vector extension and creates the registry table.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreUnreachable, err)
	}

	s := &Store{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: failed to create vector extension: %v", storage.ErrStoreUnreachable, err)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			distance TEXT NOT NULL
		)`, registryTable))
	if err != nil {
		return fmt.Errorf("failed to create registry table: %w", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStoreUnreachable, err)
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (*storage.Collection, error) {
	c := storage.Collection{Name: name}
	var distance string

	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT dimension, distance FROM %s WHERE name = $1", registryTable),
		name,
	).Scan(&c.Dimension, &distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	c.Distance = storage.Distance(distance)
	return &c, nil
}

// CreateCollection registers the collection and creates its table and cosine
// index in one transaction.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, distance storage.Distance) (*storage.Collection, error) {
	if distance != storage.DistanceCosine {
		return nil, fmt.Errorf("unsupported distance %q", distance)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (name, dimension, distance) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING", registryTable),
		name, dimension, string(distance),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register collection %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrCollectionExists
	}

	table := pgx.Identifier{name}.Sanitize()
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL
		)`, table, dimension)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pgx.Identifier{name + "_embedding_idx"}.Sanitize(), table)
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &storage.Collection{Name: name, Dimension: dimension, Distance: distance}, nil
}

// Upsert writes all records in one transaction, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, collection *storage.Collection, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(collection, records); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		pgx.Identifier{collection.Name}.Sanitize())

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(stmt, r.ID, sanitizeUTF8(r.Text), pgvector.NewVector(r.Vector), r.Metadata)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert %d records: %w", len(records), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
