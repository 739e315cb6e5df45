package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	cachePrefix    = "cache:"
	cacheHitsKey   = "cache_stats:hits"
	cacheMissesKey = "cache_stats:misses"
)

// CacheRepo is a shared TTL result cache with hit and miss counters.
// Expiration is enforced by Redis key TTLs; a read after expiry is a miss.
type CacheRepo struct {
	client *goredis.Client
}

func NewCacheRepo(client *goredis.Client) *CacheRepo {
	return &CacheRepo{client: client}
}

func cacheKey(key string) string {
	return cachePrefix + key
}

func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrCacheMiss
	}

	value, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			r.client.Incr(ctx, cacheMissesKey)
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	r.client.Incr(ctx, cacheHitsKey)
	return value, nil
}

func (r *CacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(key) == "" || ttl <= 0 {
		return fmt.Errorf("invalid cache entry")
	}

	if err := r.client.Set(ctx, cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (r *CacheRepo) Stats(ctx context.Context) (CacheStats, error) {
	if r == nil || r.client == nil {
		return CacheStats{}, fmt.Errorf("redis client is nil")
	}

	var stats CacheStats
	iter := r.client.Scan(ctx, 0, cachePrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		stats.Entries++
	}
	if err := iter.Err(); err != nil {
		return CacheStats{}, fmt.Errorf("scan cache keys: %w", err)
	}

	hits, err := r.client.Get(ctx, cacheHitsKey).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return CacheStats{}, fmt.Errorf("read cache hits: %w", err)
	}
	misses, err := r.client.Get(ctx, cacheMissesKey).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return CacheStats{}, fmt.Errorf("read cache misses: %w", err)
	}
	stats.Hits = hits
	stats.Misses = misses

	return stats, nil
}

// Reset drops all cached entries and zeroes the counters.
func (r *CacheRepo) Reset(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	iter := r.client.Scan(ctx, 0, cachePrefix+"*", 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}

	keys = append(keys, cacheHitsKey, cacheMissesKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}

	return nil
}
