package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewCacheRepo(client), mr
}

func TestCacheSetGetAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "search:q", []byte(`["a"]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := cache.Get(ctx, "search:q")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `["a"]` {
		t.Fatalf("unexpected value %q", got)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "search:q"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after TTL, got %v", err)
	}
}

func TestCacheStatsCountHitsAndMisses(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, _ = cache.Get(ctx, "absent")
	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := cache.Get(ctx, "k"); err != nil {
		t.Fatalf("get: %v", err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCacheResetClearsEntriesAndCounters(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, _ = cache.Get(ctx, "k")

	if err := cache.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}
