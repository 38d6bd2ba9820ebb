package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// ErrCacheMiss is returned by a Cache for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// DefaultCacheTTL is how long parcel lookups stay cached.
const DefaultCacheTTL = 10 * time.Minute

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache with go-redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache returns a cache whose keys are namespaced by prefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Cached decorates a Store, caching parcel detail and tax history. Cache
// errors are logged and the wrapped store is used instead.
type Cached struct {
	Store
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCached wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCached(next Store, cache Cache, ttl time.Duration, log *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{Store: next, cache: cache, ttl: ttl, log: log.Named("cache")}
}

// LoadOverlay is never cached; overlays are held in memory by the service.
func (c *Cached) LoadOverlay(ctx context.Context, cfg OverlayConfig) ([]feature.Row, error) {
	return c.Store.LoadOverlay(ctx, cfg)
}

func (c *Cached) Parcel(ctx context.Context, id string) (*Parcel, error) {
	var p *Parcel
	err := cached(ctx, c, "parcel:"+id, &p, func() (*Parcel, error) {
		return c.Store.Parcel(ctx, id)
	})
	return p, err
}

func (c *Cached) TaxHistory(ctx context.Context, id string) ([]TaxYear, error) {
	var h []TaxYear
	err := cached(ctx, c, "history:"+id, &h, func() ([]TaxYear, error) {
		return c.Store.TaxHistory(ctx, id)
	})
	return h, err
}

func cached[T any](ctx context.Context, c *Cached, key string, dest *T, load func() (T, error)) error {
	b, err := c.cache.Get(ctx, key)
	if err == nil {
		if err := json.Unmarshal(b, dest); err == nil {
			return nil
		}
		c.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return err
	}
	*dest = v
	if b, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
