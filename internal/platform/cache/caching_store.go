// Package cache provides caching decorators for the key-value store.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"studio_backend/internal/platform/kv"
)

// CachingStore decorates a kv.Store with a Redis read-through cache.
// Only keys in the allow-list are cached; every write to a cached key invalidates it.
type CachingStore struct {
	inner     kv.Store
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	keys      map[string]struct{}
}

// Compile-time check to ensure CachingStore implements kv.Store.
var _ kv.Store = (*CachingStore)(nil)

// NewCachingStore decorates inner with Redis caching for the given keys.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "kvcache".
func NewCachingStore(rdb *redis.Client, ttl time.Duration, inner kv.Store, namespace string, keys ...string) *CachingStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "kvcache"
	}
	allow := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allow[k] = struct{}{}
	}
	return &CachingStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		keys:      allow,
	}
}

// cached reports whether reads of key go through Redis.
func (c *CachingStore) cached(key string) bool {
	if c.rdb == nil {
		return false
	}
	_, ok := c.keys[key]
	return ok
}

// Get checks the cache first, then falls back to the inner store.
func (c *CachingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.cached(key) {
		return c.inner.Get(ctx, key)
	}

	ck := c.cacheKey(key)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, ck).Bytes(); err == nil && len(b) > 0 {
		return b, nil
	}

	// 2) Fallback to the store
	out, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort). Absent keys are not cached.
	if out != nil {
		_ = c.rdb.Set(ctx, ck, out, c.ttl).Err()
	}
	return out, nil
}

// Set writes through to the inner store and invalidates the cache entry.
func (c *CachingStore) Set(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Set(ctx, key, value); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// SetTTL writes through to the inner store and invalidates the cache entry.
func (c *CachingStore) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.inner.SetTTL(ctx, key, value, ttl); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// Delete removes key from the inner store and the cache.
func (c *CachingStore) Delete(ctx context.Context, key string) error {
	if err := c.inner.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// Update always reads from the inner store so the mutation sees committed state.
func (c *CachingStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := c.inner.Update(ctx, key, fn); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// invalidate drops the cache entry for key. Failures are ignored; the TTL bounds staleness.
func (c *CachingStore) invalidate(ctx context.Context, key string) {
	if !c.cached(key) {
		return
	}
	_ = c.rdb.Del(ctx, c.cacheKey(key)).Err()
}

// cacheKey generates the Redis key for a slot.
func (c *CachingStore) cacheKey(key string) string {
	return fmt.Sprintf("%s:%s", c.namespace, safe(key))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
