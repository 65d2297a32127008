package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFixedWindow shares the window across API replicas. If Redis is
// unreachable the hit is counted by the fallback limiter, or let through when
// there is none.
type RedisFixedWindow struct {
	rdb      redis.Cmdable
	limit    int
	window   time.Duration
	prefix   string
	fallback Limiter
	logger   *zap.SugaredLogger
}

func NewRedisFixedWindow(rdb redis.Cmdable, limit int, window time.Duration, logger *zap.SugaredLogger) *RedisFixedWindow {
	return &RedisFixedWindow{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		logger: logger,
	}
}

// WithFallback sets the limiter used while Redis is unreachable.
func (rl *RedisFixedWindow) WithFallback(l Limiter) *RedisFixedWindow {
	rl.fallback = l
	return rl
}

func (rl *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, time.Duration) {
	k := rl.prefix + key

	n, err := rl.rdb.Incr(ctx, k).Result()
	if err != nil {
		if rl.fallback != nil {
			rl.logger.Warnw("rate limiter unavailable, counting in process", "key", key, "error", err)
			return rl.fallback.Allow(ctx, key)
		}
		rl.logger.Warnw("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true, 0
	}
	if n == 1 {
		if err := rl.rdb.Expire(ctx, k, rl.window).Err(); err != nil {
			rl.logger.Warnw("rate limiter expire failed", "key", key, "error", err)
		}
	}
	if int(n) <= rl.limit {
		return true, 0
	}

	retry, err := rl.rdb.TTL(ctx, k).Result()
	if err != nil || retry <= 0 {
		retry = rl.window
	}
	return false, retry
}
