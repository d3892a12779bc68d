// Package storage defines the collection store contract and manages per-tenant collections.
package storage

import "context"

// Store is a vector collection store. Implementations must be safe for concurrent use.
type Store interface {
	// GetCollection returns the named collection or ErrCollectionNotFound.
	GetCollection(ctx context.Context, name string) (*Collection, error)

	// CreateCollection creates a collection. It returns ErrCollectionExists when
	// another caller created it first.
	CreateCollection(ctx context.Context, name string, dimension int, distance Distance) (*Collection, error)

	// Upsert writes all records in a single request. Records whose id already
	// exists are overwritten.
	Upsert(ctx context.Context, collection *Collection, records []Record) error

	// Health returns nil when the store is reachable.
	Health(ctx context.Context) error

	Close() error
}
