// Package cache provides the TTL-based cache used by the Data Fetcher
// Pool (C3); the News Service (C4) keeps its own in-process cache. The default backend is an in-process
// map guarded by a sync.RWMutex; when REDIS_ADDR is configured, a
// go-redis backend is used
// instead so cached quotes/candles survive process
// restarts and are shared across multiple instances.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a generic TTL-keyed byte-value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close() error
}

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is the default in-process cache backend.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewMemory constructs an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{data: map[string]entry{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.data[key] = entry{value: value, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

// Redis is a go-redis backed Cache, used when REDIS_ADDR is set so
// cached quotes/candles are shared across instances.
type Redis struct {
	client *redis.Client
}

// NewRedis dials a redis server at addr.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	r.client.Set(ctx, key, value, ttl)
}

func (r *Redis) Close() error { return r.client.Close() }

// GetJSON is a typed convenience wrapper around Get.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// SetJSON is a typed convenience wrapper around Set.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}

// New selects a Redis-backed cache when addr is non-empty, otherwise an
// in-process Memory cache.
func New(addr string) Cache {
	if addr != "" {
		return NewRedis(addr)
	}
	return NewMemory()
}
