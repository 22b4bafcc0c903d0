package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// SlidingWindow implements a per-key sliding window limiter on a Redis
// sorted set. Each request adds a member scored by its timestamp; members
// older than the window are pruned before counting.
type SlidingWindow struct {
	R      *redis.Client
	Limit  int
	Window time.Duration

	Now func() time.Time
}

// Result describes one limiter decision.
type Result struct {
	Allowed   bool
	Remaining int
	RetryIn   time.Duration
}

// Allow records the request and reports whether it fits inside the window.
func (s *SlidingWindow) Allow(ctx context.Context, key string) (Result, error) {
	if s.R == nil || s.Limit <= 0 {
		return Result{Allowed: true, Remaining: s.Limit}, nil
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	redisKey := "pos:rl:" + key
	cutoff := now.Add(-s.Window)

	pipe := s.R.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, s.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	n := int(count.Val())
	if n > s.Limit {
		return Result{Allowed: false, Remaining: 0, RetryIn: s.Window}, nil
	}
	return Result{Allowed: true, Remaining: s.Limit - n}, nil
}
