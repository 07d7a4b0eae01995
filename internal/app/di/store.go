// Package di provides dependency injection factories for creating application components.
package di

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"studio_backend/internal/feature/account/adapters"
	"studio_backend/internal/platform/cache"
	"studio_backend/internal/platform/config"
	"studio_backend/internal/platform/kv"
)

// storeNamespace prefixes every Redis key owned by the service.
const storeNamespace = "studio"

// NewStore creates the kv.Store for the configured backend.
// On the sql backend with Redis available, reads of the plans slot go through a Redis cache.
func NewStore(backend string, db *gorm.DB, rdb *redis.Client, plansTTL time.Duration) (kv.Store, error) {
	switch backend {
	case config.StoreBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis store requires a redis client")
		}
		return kv.NewRedisStore(rdb, storeNamespace), nil
	case config.StoreBackendSQL:
		if db == nil {
			return nil, errors.New("sql store requires a database")
		}
		var store kv.Store = kv.NewGormStore(db)
		if rdb != nil {
			store = cache.NewCachingStore(rdb, plansTTL, store, storeNamespace+":cache", adapters.SlotPlans)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
