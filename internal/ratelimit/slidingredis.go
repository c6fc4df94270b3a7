package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter implements a sliding window rate limiter backed by Redis sorted sets.
// Rejected attempts are counted too, so hammering keeps the window full.
type Limiter struct {
	Client redis.Cmdable
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow registers an attempt for key and reports whether it is within limit per window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	now := l.now()
	if l.Client == nil || limit <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	redisKey := l.Prefix + key
	cutoff := now.Add(-window).UnixNano()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{ResetAt: now.Add(window)}, err
	}

	current := int(countCmd.Val())
	return Decision{
		Allowed:   current <= limit,
		Remaining: max(0, limit-current),
		ResetAt:   now.Add(window),
	}, nil
}
