package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bridgeflow-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a Cache that has no entry for a key
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized quote lists
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and checks the connection
func NewRedisCache(ctx context.Context, addr string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisCache{client: rdb}, nil
}

// Get returns the value of key, or ErrCacheMiss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

// Set stores value under key for ttl
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedSource serves quotes from a cache and falls back to the wrapped source.
// Cache failures are logged and never fail a lookup.
type CachedSource struct {
	source Source
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedSource wraps source with cache
func NewCachedSource(source Source, cache Cache, ttl time.Duration, prefix string, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{source: source, cache: cache, ttl: ttl, prefix: prefix, logger: logger}
}

func (s *CachedSource) key(network string) string {
	return fmt.Sprintf("%s:prices:%s", s.prefix, network)
}

// Prices returns cached quotes when present, otherwise fetches and caches them
func (s *CachedSource) Prices(ctx context.Context, network string) ([]models.Quote, error) {
	key := s.key(network)

	data, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var quotes []models.Quote
		if jsonErr := json.Unmarshal(data, &quotes); jsonErr == nil {
			return quotes, nil
		}
		s.logger.Warn("Discarding malformed cached prices", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("Price cache read failed", zap.String("key", key), zap.Error(err))
	}

	return s.Refresh(ctx, network)
}

// Refresh fetches quotes from the wrapped source and overwrites the cache entry
func (s *CachedSource) Refresh(ctx context.Context, network string) ([]models.Quote, error) {
	quotes, err := s.source.Prices(ctx, network)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(quotes)
	if err != nil {
		return quotes, nil
	}
	if err := s.cache.Set(ctx, s.key(network), data, s.ttl); err != nil {
		s.logger.Warn("Price cache write failed", zap.String("network", network), zap.Error(err))
	}
	return quotes, nil
}
