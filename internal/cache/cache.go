// Package cache holds the summary response caches: an in-process LRU used
// by default and a Redis-backed variant for multi-instance deployments.
// Writes to sales or expenses flush the whole cache, since any period's
// summary may have changed.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Summaries caches rendered summary payloads keyed by period key.
type Summaries interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Flush(ctx context.Context)
}

// Memory is the in-process Summaries implementation.
type Memory struct {
	store *Store[string]
}

// NewMemory creates an in-process summary cache.
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	return &Memory{store: NewStore[string](maxSize, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) { return m.store.Get(key) }

func (m *Memory) Set(_ context.Context, key, value string) { m.store.Set(key, value) }

func (m *Memory) Flush(context.Context) { m.store.Flush() }

// CleanExpired drops expired entries; wired into the Manager ticker.
func (m *Memory) CleanExpired() int { return m.store.CleanExpired() }

const redisPrefix = "summary:"

// Redis is the Redis-backed Summaries implementation. Misses and transport
// errors look the same to callers; the summary is simply recomputed.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a summary cache to the Redis at addr.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, redisPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	r.client.Set(ctx, redisPrefix+key, value, r.ttl)
}

func (r *Redis) Flush(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		r.client.Del(ctx, iter.Val())
	}
}

// Ping verifies the connection at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs a periodic expiry sweep over registered caches.
type Manager struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup sweeps all registered caches every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, c := range m.caches {
					c.CleanExpired()
				}
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
