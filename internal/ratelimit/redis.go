package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces limiter keys.
const DefaultRedisPrefix = "ratelimit:feedback:"

// RedisLimiter implements a sliding-window limiter shared by every instance
// pointing at the same Redis. Each identifier is a sorted set of attempt
// timestamps.
type RedisLimiter struct {
	client *redis.Client
	config Config
	prefix string
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		config: cfg.withDefaults(),
		prefix: DefaultRedisPrefix,
		now:    time.Now,
	}
}

// Allow checks if a request from the given identifier is allowed. The attempt
// is recorded optimistically and withdrawn when it pushes the count over the limit.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (*Result, error) {
	now := l.now()
	key := l.prefix + identifier
	windowStart := now.Add(-l.config.Window).UnixNano()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
		count = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resetAfter := l.config.Window
	if zs := oldest.Val(); len(zs) > 0 {
		oldestAt := time.Unix(0, int64(zs[0].Score))
		resetAfter = max(oldestAt.Add(l.config.Window).Sub(now), 0)
	}

	n := int(count.Val())
	if n > l.config.Requests {
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			return nil, fmt.Errorf("rate limit rollback failed: %w", err)
		}
		return blocked(l.config.Requests, resetAfter), nil
	}

	return &Result{
		Allowed:    true,
		Remaining:  l.config.Requests - n,
		ResetAfter: resetAfter,
		Limit:      l.config.Requests,
	}, nil
}

// Reset clears the rate limit state for an identifier.
func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	return l.client.Del(ctx, l.prefix+identifier).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisLimiter) Close() error {
	return nil
}
