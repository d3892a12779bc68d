package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"
)

// CollectionPrefix is prepended to the tenant id to name its collection.
const CollectionPrefix = "bot_"

// resolveTimeout bounds a shared lookup, which outlives the caller that started it.
const resolveTimeout = 30 * time.Second

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CollectionName returns the collection name for tenantID.
func CollectionName(tenantID string) string {
	return CollectionPrefix + tenantID
}

// ValidateTenantID checks tenantID can be used in a collection name on every backend.
func ValidateTenantID(tenantID string) error {
	if !tenantPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidTenant, tenantID, tenantPattern)
	}
	return nil
}

// CollectionManager resolves tenants to their collections, creating them on first use.
type CollectionManager struct {
	store     Store
	dimension int
	group     singleflight.Group
	logger    *slog.Logger
}

// NewCollectionManager creates a manager that creates collections with the given
// vector dimension and cosine distance.
func NewCollectionManager(store Store, dimension int, logger *slog.Logger) *CollectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionManager{
		store:     store,
		dimension: dimension,
		logger:    logger,
	}
}

// GetOrCreate returns the tenant's collection, creating it if absent.
// Concurrent calls for the same tenant share one lookup; a creation race with
// another process is resolved by fetching the collection the winner created.
// Cancelling ctx releases this caller only; the shared lookup keeps running.
func (m *CollectionManager) GetOrCreate(ctx context.Context, tenantID string) (*Collection, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	name := CollectionName(tenantID)

	ch := m.group.DoChan(name, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return m.getOrCreate(ctx, name)
	})

	select {
	case <-ctx.Done():
		return nil, &CollectionAccessError{Collection: name, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, &CollectionAccessError{Collection: name, Err: res.Err}
		}
		return res.Val.(*Collection), nil
	}
}

func (m *CollectionManager) getOrCreate(ctx context.Context, name string) (*Collection, error) {
	c, err := m.store.GetCollection(ctx, name)
	if err == nil {
		return m.checkDimension(c)
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return nil, err
	}

	c, err = m.store.CreateCollection(ctx, name, m.dimension, DistanceCosine)
	if errors.Is(err, ErrCollectionExists) {
		m.logger.Debug("collection created concurrently", "collection", name)
		if c, err = m.store.GetCollection(ctx, name); err != nil {
			return nil, err
		}
		return m.checkDimension(c)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("created collection", "collection", name, "dimension", c.Dimension)
	return m.checkDimension(c)
}

func (m *CollectionManager) checkDimension(c *Collection) (*Collection, error) {
	if c.Dimension != 0 && m.dimension != 0 && c.Dimension != m.dimension {
		return nil, fmt.Errorf("%w: collection %s has %d dimensions, embeddings have %d",
			ErrDimensionMismatch, c.Name, c.Dimension, m.dimension)
	}
	return c, nil
}
