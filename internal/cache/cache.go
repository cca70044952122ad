// Package cache wraps a Redis client as a distributed layer in front of the
// resolver: internal/server stores resolve-run plans in it, so a second
// mcvmd replica resolving the same request set doesn't re-run the
// fixed-point algorithm. A key shape for repository index snapshots is
// defined in Keys, but nothing stores index snapshots.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config mirrors the single-instance Redis configuration mcvmd reads from
// internal/config.
type Config struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
}

// Manager is a thin, typed wrapper over redis.Cmdable: JSON in, JSON out,
// with a default TTL and a hit/miss counter pair for /metrics.
type Manager struct {
	client     redis.Cmdable
	defaultTTL time.Duration
}

// New connects to Redis and verifies the connection with a Ping, exactly
// as the platform's cache manager does before returning a usable client.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{client: client, defaultTTL: ttl}, nil
}

// Set stores value as JSON under key with the default TTL, or an explicit
// one when provided.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	t := m.defaultTTL
	if len(ttl) > 0 {
		t = ttl[0]
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value for %s: %w", key, err)
	}
	if err := m.client.Set(ctx, key, data, t).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	m.client.Incr(ctx, "mcvm:cache:stats:sets")
	return nil
}

// Get decodes the cached value into dest, reporting a miss via ok=false
// rather than an error (a miss is the common, non-exceptional case).
func (m *Manager) Get(ctx context.Context, key string, dest interface{}) (ok bool, err error) {
	data, err := m.client.Get(ctx, key).Result()
	if err == redis.Nil {
		m.client.Incr(ctx, "mcvm:cache:stats:misses")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to deserialize cache value for %s: %w", key, err)
	}
	m.client.Incr(ctx, "mcvm:cache:stats:hits")
	return true, nil
}

// Delete removes a single key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.client.Del(ctx, key).Err()
}

// InvalidatePattern removes every key matching pattern. The repository
// sync loop in cmd/mcvmd does not call it.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := m.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to list keys for pattern %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return m.client.Del(ctx, keys...).Err()
}

// Stats reports accumulated hit/miss counters for /metrics.
type Stats struct {
	Hits   int64
	Misses int64
}

func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	hits, err := m.client.Get(ctx, "mcvm:cache:stats:hits").Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, err
	}
	misses, err := m.client.Get(ctx, "mcvm:cache:stats:misses").Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, err
	}
	return Stats{Hits: hits, Misses: misses}, nil
}

// Keys centralizes the key patterns used across mcvmd, mirroring the
// platform cache's named key-generator pattern.
type Keys struct {
	RepoIndex   func(repoID string) string
	ResolvePlan func(requestSignature string) string
}

func NewKeys() *Keys {
	return &Keys{
		RepoIndex:   func(repoID string) string { return fmt.Sprintf("mcvm:repo:index:%s", repoID) },
		ResolvePlan: func(requestSignature string) string { return fmt.Sprintf("mcvm:resolve:plan:%s", requestSignature) },
	}
}
