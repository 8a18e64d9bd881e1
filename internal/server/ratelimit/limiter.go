// Package ratelimit throttles repeated attempts per key with a fixed window,
// backed by Redis when configured or by an in-process cache otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Duration) {
	start := now.Truncate(window)
	left := start.Add(window).Sub(now)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), left
}

func result(hits, max int64, left time.Duration) Result {
	res := Result{Allowed: hits <= max, Remaining: max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = left
	}
	return res
}

// RedisLimiter counts hits with INCR on a per-window key.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey, left := windowKey(l.prefix, key, l.now().UTC(), l.window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit: %w", err)
	}

	return result(incr.Val(), l.max, left), nil
}

// MemoryLimiter keeps counters in process memory. Counts are per instance.
type MemoryLimiter struct {
	cache  *cache.Cache
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  cache.New(window, 2*window),
		prefix: "rl:",
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	k, left := windowKey(l.prefix, key, l.now().UTC(), l.window)

	if err := l.cache.Add(k, int64(1), left); err == nil {
		return result(1, l.max, left), nil
	}
	hits, err := l.cache.IncrementInt64(k, 1)
	if err != nil {
		// the entry expired between Add and Increment
		l.cache.Set(k, int64(1), left)
		hits = 1
	}
	return result(hits, l.max, left), nil
}

// Disabled allows everything.
type Disabled struct{}

func (Disabled) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true}, nil
}
