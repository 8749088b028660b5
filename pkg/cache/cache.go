package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/polygonid/attestation-bridge/internal/config"
	"github.com/polygonid/attestation-bridge/internal/log"
	iRedis "github.com/polygonid/attestation-bridge/internal/redis"
)

const (
	ForEver = 0 * time.Second // ForEver It can be cached forever
)

// Cache interface propose an interface that any cache should adhere
type Cache interface {
	// Set sets a value in the caches accessible by the key. The ttl param is the maximum time to live in the cache
	// a ttl=0 means that the entry could be cached forever
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get searches for a non expired entry in the cache and stores it in value, which must be a pointer.
	// You should only trust value if the returned boolean is true.
	Get(ctx context.Context, key string, value any) bool
	// Exists tells whether a key exists in the cache with a valid ttl
	Exists(ctx context.Context, key string) bool
	// Delete removes an entry from the cache.
	Delete(ctx context.Context, key string) error
}

// NewCacheClient creates the credential cache selected by the configuration.
// rdb is only used by the redis provider and may be nil otherwise.
func NewCacheClient(ctx context.Context, cfg config.Configuration, rdb *redis.Client) (Cache, error) {
	if cfg.CredentialCache.Provider != config.CacheProviderRedis {
		return NewMemoryCache(), nil
	}
	if rdb == nil {
		var err error
		rdb, err = iRedis.Open(ctx, cfg.Redis.URL, cfg.Redis.Username, cfg.Redis.Password)
		if err != nil {
			log.Error(ctx, "cannot connect to redis", "err", err)
			return nil, err
		}
	}
	return NewRedisCache(rdb), nil
}
