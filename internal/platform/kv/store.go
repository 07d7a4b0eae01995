// Package kv provides the key-value persistence layer that backs every studio slot
// (users, history, plans and sessions).
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrConflict is returned when an optimistic update could not be applied after all retries.
var ErrConflict = errors.New("kv: concurrent update conflict")

// Store abstracts a durable key-value medium holding opaque JSON documents.
//
// Update is the only way to mutate a slot based on its current value: implementations run
// the read-modify-write of one key atomically with respect to other Updates of that key.
type Store interface {
	// Get returns the raw value for key, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// SetTTL overwrites the value for key; the key reads as absent once ttl has passed.
	// A ttl <= 0 behaves like Set.
	SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Update reads the current value (nil if absent), passes it to fn and stores the result.
	// If fn returns an error nothing is written and the error is returned unchanged.
	// If fn returns a nil slice the key is deleted. A written value never expires.
	// fn may be invoked more than once by optimistic implementations.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// decode unmarshals raw into dst. A missing or corrupt slot leaves dst at its zero value.
func decode(key string, raw []byte, dst any) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("corrupt slot treated as empty", "key", key, "error", err)
	}
}

// ReadJSON loads key and decodes it into a T. Absent or corrupt slots yield the zero T.
func ReadJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	decode(key, raw, &v)
	return v, nil
}

// WriteJSON encodes v and stores it under key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, b)
}

// UpdateJSON runs fn against the decoded value of key inside Store.Update and writes the
// result back. An error from fn aborts the update.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T) error) error {
	return s.Update(ctx, key, func(current []byte) ([]byte, error) {
		var v T
		decode(key, current, &v)
		if err := fn(&v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}
