package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/metrics"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// Redis is a Store backed by a Redis instance, for deployments where
// several dashboard processes share one cache. In-flight fetch tracking is
// process-local; entry storage is remote.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration

	mu      sync.Mutex
	pending map[domain.CacheKey]*pendingFetch
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &Redis{
		rdb:     rdb,
		ttl:     ttl,
		pending: make(map[domain.CacheKey]*pendingFetch),
	}, nil
}

func entryKey(key domain.CacheKey) string {
	return fmt.Sprintf("caresync:cache:%s", key)
}

func (r *Redis) Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key domain.CacheKey, value []byte) error {
	if err := r.rdb.Set(ctx, entryKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("set").Inc()
	return nil
}

func (r *Redis) Delete(ctx context.Context, key domain.CacheKey) error {
	if err := r.rdb.Del(ctx, entryKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("delete").Inc()
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, pattern string) error {
	keys, err := r.rdb.Keys(ctx, entryKey(domain.CacheKey(pattern))).Result()
	if err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) > 0 {
		if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cache entries: %w", err)
		}
	}
	metrics.CacheOperations.WithLabelValues("invalidate").Inc()
	return nil
}

func (r *Redis) Refresh(ctx context.Context, key domain.CacheKey, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pf := &pendingFetch{cancel: cancel}
	r.mu.Lock()
	if prev, ok := r.pending[key]; ok {
		prev.canceled = true
		prev.cancel()
	}
	r.pending[key] = pf
	r.mu.Unlock()

	value, err := fetch(fetchCtx)

	r.mu.Lock()
	if r.pending[key] == pf {
		delete(r.pending, key)
	}
	canceled := pf.canceled
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if canceled {
		return nil, context.Canceled
	}

	if err := r.Set(ctx, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Redis) CancelPending(key domain.CacheKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pf, ok := r.pending[key]; ok {
		pf.canceled = true
		pf.cancel()
		delete(r.pending, key)
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
