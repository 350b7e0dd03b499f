// Package cache provides the client-side key-value cache the resilience
// layer mutates. Values are stored as encoded bytes so a rollback restores
// the pre-mutation entry byte for byte.
package cache

import (
	"context"

	"github.com/careops/caresync/internal/core/domain"
)

// Store is the cache abstraction consumed by the optimistic mutation
// coordinator and read by the presentation layer.
type Store interface {
	// Get returns the entry for key and whether it exists.
	Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error)

	// Set writes the entry for key, replacing any existing value.
	Set(ctx context.Context, key domain.CacheKey, value []byte) error

	// Delete removes the entry for key.
	Delete(ctx context.Context, key domain.CacheKey) error

	// Invalidate removes entries matching pattern. A trailing '*' matches
	// by prefix; anything else is an exact key.
	Invalidate(ctx context.Context, pattern string) error

	// Refresh fetches a fresh value for key and stores it, unless the
	// fetch is canceled by CancelPending before it completes.
	Refresh(ctx context.Context, key domain.CacheKey, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)

	// CancelPending aborts any in-flight Refresh for key. A canceled
	// refresh never writes its (stale) result to the cache.
	CancelPending(key domain.CacheKey)

	Close() error
}
