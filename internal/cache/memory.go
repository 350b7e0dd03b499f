package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/metrics"
)

// Memory is an in-process Store. It is the default backend and the one the
// optimistic coordinator's atomicity guarantees are designed around.
type Memory struct {
	mu      sync.RWMutex
	entries map[domain.CacheKey][]byte
	pending map[domain.CacheKey]*pendingFetch
}

type pendingFetch struct {
	cancel   context.CancelFunc
	canceled bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[domain.CacheKey][]byte),
		pending: make(map[domain.CacheKey]*pendingFetch),
	}
}

func (m *Memory) Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *Memory) Set(ctx context.Context, key domain.CacheKey, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = cp
	metrics.CacheOperations.WithLabelValues("set").Inc()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key domain.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	metrics.CacheOperations.WithLabelValues("delete").Inc()
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for k := range m.entries {
			if strings.HasPrefix(string(k), prefix) {
				delete(m.entries, k)
			}
		}
	} else {
		delete(m.entries, domain.CacheKey(pattern))
	}
	metrics.CacheOperations.WithLabelValues("invalidate").Inc()
	return nil
}

// Refresh runs fetch under a cancelable registration for key. If
// CancelPending fires while the fetch is in flight, the result is
// discarded and never written.
func (m *Memory) Refresh(ctx context.Context, key domain.CacheKey, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pf := &pendingFetch{cancel: cancel}
	m.mu.Lock()
	if prev, ok := m.pending[key]; ok {
		prev.canceled = true
		prev.cancel()
	}
	m.pending[key] = pf
	m.mu.Unlock()

	value, err := fetch(fetchCtx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[key] == pf {
		delete(m.pending, key)
	}
	if err != nil {
		return nil, err
	}
	if pf.canceled {
		// A mutation superseded this read; its result is stale.
		return nil, context.Canceled
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = cp
	metrics.CacheOperations.WithLabelValues("refresh").Inc()
	return value, nil
}

func (m *Memory) CancelPending(key domain.CacheKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pf, ok := m.pending[key]; ok {
		pf.canceled = true
		pf.cancel()
		delete(m.pending, key)
	}
}

func (m *Memory) Close() error {
	return nil
}
