package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	config "github.com/crosspost-app/crosspost/configs"
)

// Decision is the outcome of one consumed rate-limit slot.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ErrRateLimited is returned by a worker when a platform window is
// exhausted. The attempt is retried with backoff rather than dropped.
type ErrRateLimited struct {
	Platform string
	ResetAt  time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, window resets at %s", e.Platform, e.ResetAt.Format(time.RFC3339))
}

type Limiter interface {
	CheckAndConsume(ctx context.Context, subjectKey, platform string) (*Decision, error)
	GetInfo(ctx context.Context, subjectKey, platform string) (*Decision, error)
	Reset(ctx context.Context, subjectKey, platform string) error
}

// redisLimiter counts calls in fixed windows per (platform, subject key).
// The counter lives in Redis so every worker, and every process, shares
// the same budget; INCR before read keeps concurrent workers race-free.
type redisLimiter struct {
	rdb    *redis.Client
	limits config.RateLimits
}

func NewLimiter(rdb *redis.Client, limits config.RateLimits) Limiter {
	return &redisLimiter{rdb: rdb, limits: limits}
}

func windowKey(platform, subjectKey string) string {
	return fmt.Sprintf("ratelimit:%s:%s", platform, subjectKey)
}

func (l *redisLimiter) CheckAndConsume(ctx context.Context, subjectKey, platform string) (*Decision, error) {
	limit := l.limits.ForPlatform(platform)
	key := windowKey(platform, subjectKey)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX so only the first increment of a fresh window sets the expiry.
	pipe.ExpireNX(ctx, key, limit.Window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rate limit check for %s: %w", platform, err)
	}

	count := incr.Val()
	resetAt := time.Now().Add(ttl.Val())

	d := &Decision{
		Allowed:   count <= int64(limit.Limit),
		Limit:     limit.Limit,
		Remaining: remaining(limit.Limit, count),
		ResetAt:   resetAt,
	}
	return d, nil
}

func (l *redisLimiter) GetInfo(ctx context.Context, subjectKey, platform string) (*Decision, error) {
	limit := l.limits.ForPlatform(platform)
	key := windowKey(platform, subjectKey)

	pipe := l.rdb.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rate limit info for %s: %w", platform, err)
	}

	count, _ := get.Int64()
	resetAt := time.Now()
	if ttl.Val() > 0 {
		resetAt = resetAt.Add(ttl.Val())
	}

	return &Decision{
		Allowed:   count < int64(limit.Limit),
		Limit:     limit.Limit,
		Remaining: remaining(limit.Limit, count),
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter early. Administrative override only; windows
// normally expire on their own.
func (l *redisLimiter) Reset(ctx context.Context, subjectKey, platform string) error {
	if err := l.rdb.Del(ctx, windowKey(platform, subjectKey)).Err(); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("rate limit reset for %s: %w", platform, err)
	}
	return nil
}

func remaining(limit int, count int64) int {
	r := limit - int(count)
	if r < 0 {
		return 0
	}
	return r
}
