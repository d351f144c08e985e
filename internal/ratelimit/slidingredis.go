package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a sliding-window counter over a Redis sorted set, one set per
// key. It keeps a misbehaving terminal from hammering the checkout endpoints
// without penalising the rest of the floor.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records one hit for key and reports whether the window still has
// room. A nil client or non-positive limit disables the check.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	reset = now.Add(window)
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, reset, nil
	}

	bucket := l.Prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	hit := redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()}

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", cutoff)
	pipe.ZAdd(ctx, bucket, hit)
	count := pipe.ZCard(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}

	inWindow := int(count.Val())
	remaining = max - inWindow
	if remaining < 0 {
		remaining = 0
	}
	return inWindow <= max, remaining, reset, nil
}
