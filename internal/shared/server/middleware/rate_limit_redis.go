package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"docextract-backend/internal/shared/telemetry"
	"docextract-backend/internal/shared/util"
)

// RedisLimiter shares fixed-window counters across instances through Redis.
// A window lasts Burst/Rate seconds and admits Burst requests.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter connects to the Redis instance at redisURL.
func NewRedisLimiter(redisURL string, now func() time.Time) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: redis.NewClient(opts), now: now}, nil
}

// Ping checks connectivity.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Allow fails open when Redis is unreachable.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	window := time.Duration(math.Ceil(float64(rule.Burst)/rule.Rate*1000)) * time.Millisecond
	if window <= 0 {
		window = time.Second
	}
	now := l.now()
	windowStart := now.Truncate(window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", util.HashKey(key), windowStart.UnixMilli())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.Warn("ratelimit.redis.failed", map[string]any{"err": err.Error()})
		return true, 0
	}
	if incr.Val() <= int64(rule.Burst) {
		return true, 0
	}
	return false, windowStart.Add(window).Sub(now)
}

// Close releases the underlying connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

var _ Limiter = (*RedisLimiter)(nil)
