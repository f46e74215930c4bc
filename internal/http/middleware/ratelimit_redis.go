package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLimitPrefix = "polls:ratelimit:"

// RedisLimiter is a fixed-window Limiter shared by every replica pointing at
// the same Redis. Each window is one key that expires with the window.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter admits limit events per window per key.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: int64(limit), window: window, now: time.Now}
}

// Allow increments the counter for the current window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := r.now()
	start := now.Truncate(r.window)
	k := fmt.Sprintf("%s%s:%d", redisLimitPrefix, key, start.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}

	if incr.Val() > r.limit {
		return false, start.Add(r.window).Sub(now), nil
	}
	return true, 0, nil
}
