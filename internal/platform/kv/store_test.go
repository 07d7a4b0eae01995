package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated file-backed SQLite database for testing.
func openTestDB(t *testing.T, cfg *gorm.Config) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), cfg)
	require.NoError(t, err, "failed to initialize test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db), "failed to migrate table")
	return db
}

// setupGormStore prepares a file-backed SQLite store for testing.
func setupGormStore(t *testing.T) Store {
	t.Helper()
	return NewGormStore(openTestDB(t, &gorm.Config{}))
}

// setupRedisStore creates a miniredis-backed store for testing.
func setupRedisStore(t *testing.T) Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedisStore(client, "test")
}

var backends = []struct {
	name  string
	setup func(t *testing.T) Store
}{
	{"gorm", setupGormStore},
	{"redis", setupRedisStore},
}

func TestStore_GetSetDelete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			got, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, got, "absent key should read as nil")

			require.NoError(t, s.Set(ctx, "users", []byte(`{"a":1}`)))
			got, err = s.Get(ctx, "users")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(got))

			require.NoError(t, s.Set(ctx, "users", []byte(`{"a":2}`)))
			got, err = s.Get(ctx, "users")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(got))

			require.NoError(t, s.Delete(ctx, "users"))
			got, err = s.Get(ctx, "users")
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.NoError(t, s.Delete(ctx, "users"), "deleting an absent key is not an error")
		})
	}
}

func TestStore_Update(t *testing.T) {
	errAbort := errors.New("abort")

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			t.Run("creates absent key", func(t *testing.T) {
				err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
					assert.Nil(t, cur)
					return []byte("1"), nil
				})
				require.NoError(t, err)
				got, _ := s.Get(ctx, "counter")
				assert.Equal(t, "1", string(got))
			})

			t.Run("error aborts write", func(t *testing.T) {
				err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
					return []byte("99"), errAbort
				})
				assert.ErrorIs(t, err, errAbort)
				got, _ := s.Get(ctx, "counter")
				assert.Equal(t, "1", string(got))
			})

			t.Run("nil result deletes key", func(t *testing.T) {
				err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
					return nil, nil
				})
				require.NoError(t, err)
				got, _ := s.Get(ctx, "counter")
				assert.Nil(t, got)
			})
		})
	}
}

func TestStore_UpdateIsSerialized(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			// Each failed WATCH implies another writer committed, so workers <= retries+1 always converge.
			const workers = 10
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := UpdateJSON(ctx, s, "counter", func(n *int) error {
						*n++
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			n, err := ReadJSON[int](ctx, s, "counter")
			require.NoError(t, err)
			assert.Equal(t, workers, n, "every increment must survive")
		})
	}
}

func TestReadJSON_CorruptSlotIsEmpty(t *testing.T) {
	s := setupGormStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "plans", []byte("not json")))

	plans, err := ReadJSON[[]string](ctx, s, "plans")
	require.NoError(t, err)
	assert.Empty(t, plans)

	err = UpdateJSON(ctx, s, "plans", func(v *[]string) error {
		assert.Empty(t, *v)
		*v = append(*v, "starter")
		return nil
	})
	require.NoError(t, err)

	plans, err = ReadJSON[[]string](ctx, s, "plans")
	require.NoError(t, err)
	assert.Equal(t, []string{"starter"}, plans)
}

func TestWriteJSON(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, WriteJSON(ctx, s, "session:abc", "user-1"))

	got, err := ReadJSON[string](ctx, s, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)
}

func TestStore_SetTTL(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			require.NoError(t, s.SetTTL(ctx, "session:live", []byte(`{"userId":"u1"}`), time.Hour))
			got, err := s.Get(ctx, "session:live")
			require.NoError(t, err)
			assert.JSONEq(t, `{"userId":"u1"}`, string(got))

			require.NoError(t, s.SetTTL(ctx, "plain", []byte("1"), 0), "ttl 0 never expires")
			got, err = s.Get(ctx, "plain")
			require.NoError(t, err)
			assert.Equal(t, "1", string(got))
		})
	}
}

func TestGormStore_ExpiredEntryReadsAsAbsent(t *testing.T) {
	db := openTestDB(t, &gorm.Config{})
	s := NewGormStore(db)
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.SetTTL(ctx, "session:old", []byte(`{"userId":"u1"}`), time.Hour))
	require.NoError(t, s.Set(ctx, "users", []byte(`[]`)))

	clock = clock.Add(2 * time.Hour)
	got, err := s.Get(ctx, "session:old")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Update(ctx, "session:old", func(cur []byte) ([]byte, error) {
		assert.Nil(t, cur, "expired value must not leak into Update")
		return nil, nil
	}))

	require.NoError(t, s.SetTTL(ctx, "session:stale", []byte(`{}`), time.Minute))
	clock = clock.Add(time.Hour)
	n, err := PurgeExpired(ctx, db, clock)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, db.Model(&EntryModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only the non-expiring users slot remains")
}

func TestRedisStore_SetTTLExpiresKey(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	s := NewRedisStore(client, "test")
	ctx := context.Background()

	require.NoError(t, s.SetTTL(ctx, "session:live", []byte(`{"userId":"u1"}`), time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("test:session:live"))

	mr.FastForward(2 * time.Hour)
	got, err := s.Get(ctx, "session:live")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGormStore_KeyLockStripes(t *testing.T) {
	s := NewGormStore(openTestDB(t, &gorm.Config{}))

	assert.Same(t, s.keyLock("session:a"), s.keyLock("session:a"))
	seen := map[*sync.Mutex]struct{}{}
	for i := 0; i < 1000; i++ {
		seen[s.keyLock(fmt.Sprintf("session:%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), lockStripes)
}

// recordingWriter collects gorm logger output.
type recordingWriter struct {
	mu    sync.Mutex
	lines []string
}

func (w *recordingWriter) Printf(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestGormStore_AbsentKeyIsNotLogged(t *testing.T) {
	w := &recordingWriter{}
	db := openTestDB(t, &gorm.Config{Logger: logger.New(w, logger.Config{LogLevel: logger.Warn})})
	s := NewGormStore(db)
	ctx := context.Background()

	got, err := s.Get(ctx, "session:missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, s.Update(ctx, "history", func(cur []byte) ([]byte, error) {
		return []byte(`[]`), nil
	}))

	assert.Empty(t, w.lines)
}
