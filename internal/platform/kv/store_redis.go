package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultMaxRetries bounds optimistic WATCH/MULTI retries in Update.
const defaultMaxRetries = 16

// RedisStore implements Store on Redis strings under a key prefix.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// Compile-time check to ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new RedisStore. An empty prefix defaults to "studio".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "studio"
	}
	return &RedisStore{client: client, prefix: prefix, maxRetries: defaultMaxRetries}
}

// redisKey returns the namespaced Redis key for a slot.
func (r *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get returns the stored value or (nil, nil) when the key is absent.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// Set overwrites the value for key without expiration.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.redisKey(key), value, 0).Err()
}

// SetTTL overwrites the value for key and lets Redis expire it after ttl.
func (r *RedisStore) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.redisKey(key), value, ttl).Err()
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.redisKey(key)).Err()
}

// Update applies fn under WATCH and commits with MULTI/EXEC, retrying when another
// client modified the key in between.
func (r *RedisStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	rk := r.redisKey(key)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rk).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, rk)
				return nil
			}
			pipe.Set(ctx, rk, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}
