package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"studio_backend/internal/feature/generation/adapters/imagestore"
	"studio_backend/internal/feature/generation/usecase"
	"studio_backend/internal/platform/cache"
	"studio_backend/internal/platform/config"
	"studio_backend/internal/platform/kv"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "di.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, kv.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNewStore(t *testing.T) {
	db := openSQLite(t)
	rdb := newRedis(t)

	t.Run("sql without redis", func(t *testing.T) {
		s, err := NewStore(config.StoreBackendSQL, db, nil, time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, s)
		_, cached := s.(*cache.CachingStore)
		assert.False(t, cached)
	})

	t.Run("sql with redis caches plans", func(t *testing.T) {
		s, err := NewStore(config.StoreBackendSQL, db, rdb, time.Minute)
		require.NoError(t, err)
		assert.IsType(t, &cache.CachingStore{}, s)
	})

	t.Run("redis", func(t *testing.T) {
		s, err := NewStore(config.StoreBackendRedis, nil, rdb, time.Minute)
		require.NoError(t, err)
		assert.IsType(t, &kv.RedisStore{}, s)

		require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
		got, err := rdb.Get(context.Background(), "studio:k").Result()
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := NewStore(config.StoreBackendRedis, db, nil, time.Minute)
		assert.Error(t, err)
		_, err = NewStore(config.StoreBackendSQL, nil, nil, time.Minute)
		assert.Error(t, err)
		_, err = NewStore("mongo", db, rdb, time.Minute)
		assert.Error(t, err)
	})
}

func TestNewImageStore_DefaultsToDataURL(t *testing.T) {
	s, err := NewImageStore(context.Background(), config.ImageStoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, imagestore.DataURLStore{}, s)
}

func TestVendorClientTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GeminiConfig
		want time.Duration
	}{
		{"configured", config.GeminiConfig{GenerationTimeout: 90 * time.Second}, 100 * time.Second},
		{"short", config.GeminiConfig{GenerationTimeout: time.Second}, 11 * time.Second},
		{"unset falls back to workflow default", config.GeminiConfig{}, usecase.DefaultTimeout + vendorTimeoutMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vendorClientTimeout(tt.cfg)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got, tt.cfg.GenerationTimeout)
		})
	}
}

func TestNewImageGenerator(t *testing.T) {
	g, err := NewImageGenerator(context.Background(), config.GeminiConfig{APIKey: "k", Model: "m", GenerationTimeout: time.Second})
	require.NoError(t, err)
	assert.NotNil(t, g)

	_, err = NewImageGenerator(context.Background(), config.GeminiConfig{})
	assert.Error(t, err)
}
