package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit:lead:"

// RedisLimiter shares counters across relay instances with INCR and EXPIRE.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows limit requests per key per window.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: defaultKeyPrefix,
	}
}

// WithPrefix returns a copy of the limiter that namespaces its keys with
// prefix, so several routes can share one Redis.
func (l *RedisLimiter) WithPrefix(prefix string) *RedisLimiter {
	cp := *l
	cp.prefix = prefix
	return &cp
}

// Allow increments the counter for key. The first increment in a window
// sets its expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", k, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire %s: %w", k, err)
		}
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: ttl %s: %w", k, err)
	}
	if ttl < 0 {
		// key without expiry, e.g. a crash between INCR and EXPIRE
		ttl = l.window
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: re-expire %s: %w", k, err)
		}
	}

	return Decision{
		Allowed: int(count) <= l.limit,
		Count:   int(count),
		Limit:   l.limit,
		ResetAt: time.Now().Add(ttl),
	}, nil
}
