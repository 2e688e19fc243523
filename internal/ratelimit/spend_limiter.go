package ratelimit

import (
	"context"

	"github.com/makestack-ai/makestack/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type SpendLimiterParams struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// SpendLimiter rate-limits the credit-spend path per user. Without a redis
// client it is a pass-through.
type SpendLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewSpendLimiter(p SpendLimiterParams) *SpendLimiter {
	return &SpendLimiter{
		bucket: NewTokenBucket(p.Client),
		log:    p.Log.Named("ratelimit.spend"),
		rate:   p.Cfg.SpendRatePerSec,
		burst:  p.Cfg.SpendBurst,
	}
}

func (l *SpendLimiter) Allow(ctx context.Context, userID string) (Result, error) {
	if l == nil || l.bucket == nil {
		return Result{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, "ratelimit:spend:"+userID, l.rate, l.burst)
	if err != nil {
		// Fail open: a broken limiter must not block spending.
		l.log.Warn("rate limit check failed", zap.Error(err))
		return Result{Allowed: true}, nil
	}
	return res, nil
}
