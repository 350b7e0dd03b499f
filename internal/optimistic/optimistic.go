// Package optimistic coordinates tentative local cache writes with their
// confirming remote operations: the optimistic value is visible to readers
// immediately, and a final remote failure rolls the entry back to the
// exact pre-mutation snapshot.
package optimistic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/careops/caresync/internal/cache"
	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/metrics"
	"github.com/careops/caresync/internal/notify"
	"github.com/careops/caresync/internal/retry"
)

// Coordinator applies optimistic mutations against a cache store. Mutations
// of the same key are serialized; independent keys proceed fully
// concurrently with no shared lock.
type Coordinator struct {
	store cache.Store
	orch  *retry.Orchestrator
	sink  notify.Sink

	// relatedKeys names the derived entries (list views) to mark stale
	// after a committed mutation.
	relatedKeys func(domain.CacheKey) []domain.CacheKey

	mu   sync.Mutex
	keys map[domain.CacheKey]*keyLock
}

// NewCoordinator creates a coordinator over the given store and
// orchestrator. A nil sink discards notifications.
func NewCoordinator(store cache.Store, orch *retry.Orchestrator, sink notify.Sink) *Coordinator {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Coordinator{
		store:       store,
		orch:        orch,
		sink:        sink,
		relatedKeys: domain.RelatedListKeys,
		keys:        make(map[domain.CacheKey]*keyLock),
	}
}

// SetRelatedKeys overrides the derived-key mapping.
func (c *Coordinator) SetRelatedKeys(fn func(domain.CacheKey) []domain.CacheKey) {
	c.relatedKeys = fn
}

// keyLock serializes mutations of one key. refs counts holders plus
// waiters so the map entry can be reaped once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (c *Coordinator) acquireKey(key domain.CacheKey) *keyLock {
	c.mu.Lock()
	l, ok := c.keys[key]
	if !ok {
		l = &keyLock{}
		c.keys[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

func (c *Coordinator) releaseKey(key domain.CacheKey, l *keyLock) {
	l.mu.Unlock()

	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.keys, key)
	}
	c.mu.Unlock()
}

// snapshot is the pre-mutation copy of a cache entry, owned by the
// coordinator for the mutation's lifetime.
type snapshot struct {
	value  []byte
	exists bool
}

// Mutate applies optimisticValue to the cache for key, runs op through the
// retry orchestrator under policy, then reconciles:
//
//   - success: the cache holds op's authoritative result and the related
//     derived entries are invalidated for re-fetch;
//   - failure: the cache entry is restored exactly to its pre-mutation
//     state and the final error is returned.
//
// Any in-flight read refresh for key is canceled first so a stale read
// cannot overwrite the optimistic value.
func Mutate[T any](ctx context.Context, c *Coordinator, name string, key domain.CacheKey, optimisticValue T, op func(ctx context.Context) (T, error), policy retry.Policy) (T, error) {
	var zero T

	lock := c.acquireKey(key)
	defer c.releaseKey(key, lock)

	// 1. Cancel competing reads, 2. snapshot, 3. apply — in order, with no
	// suspension between them for in-process stores.
	c.store.CancelPending(key)

	prev, exists, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("snapshot cache entry %q: %w", key, err)
	}
	snap := snapshot{value: prev, exists: exists}

	optBytes, err := json.Marshal(optimisticValue)
	if err != nil {
		return zero, fmt.Errorf("encode optimistic value for %q: %w", key, err)
	}
	if err := c.store.Set(ctx, key, optBytes); err != nil {
		return zero, fmt.Errorf("apply optimistic value for %q: %w", key, err)
	}

	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error) {
			c.sink.Retrying(name, attempt, err)
		}
	}

	// 4. Remote operation, individually resilient.
	outcome := retry.Execute(ctx, c.orch, op, policy)
	if outcome.Err != nil {
		// 6. Rollback to the exact snapshot, then propagate.
		if rbErr := c.restore(ctx, key, snap); rbErr != nil {
			return zero, fmt.Errorf("rollback of %q failed after %v: %w", key, outcome.Err, rbErr)
		}
		metrics.OptimisticRollbacks.Inc()
		c.sink.Failed(name, outcome.Attempts, outcome.Err)
		c.sink.Restored(string(key))
		return zero, outcome.Err
	}

	// 5. Commit the authoritative result. If the commit itself cannot be
	// written, the unconfirmed optimistic entry must not be left behind:
	// drop it so the next read fetches the state the remote now holds.
	authBytes, err := json.Marshal(outcome.Data)
	if err != nil {
		c.discard(ctx, key)
		return zero, fmt.Errorf("encode authoritative value for %q: %w", key, err)
	}
	if err := c.store.Set(ctx, key, authBytes); err != nil {
		c.discard(ctx, key)
		return zero, fmt.Errorf("commit authoritative value for %q: %w", key, err)
	}
	for _, rk := range c.relatedKeys(key) {
		// The entry itself is committed; a derived list that cannot be
		// marked stale is logged, not raised.
		if err := c.store.Invalidate(ctx, string(rk)); err != nil {
			slog.Warn("Could not invalidate derived entry", "key", rk, "error", err)
		}
	}

	metrics.OptimisticCommits.Inc()
	c.sink.Succeeded(name, outcome.Attempts)
	return outcome.Data, nil
}

func (c *Coordinator) restore(ctx context.Context, key domain.CacheKey, snap snapshot) error {
	if !snap.exists {
		return c.store.Delete(ctx, key)
	}
	return c.store.Set(ctx, key, snap.value)
}

// discard is the best-effort cleanup for a commit that could not be
// written after the remote operation succeeded.
func (c *Coordinator) discard(ctx context.Context, key domain.CacheKey) {
	if err := c.store.Delete(ctx, key); err != nil {
		slog.Warn("Could not drop unconfirmed cache entry", "key", key, "error", err)
	}
}
