package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
)

const (
	keyWebhookDelivery = "webhook:delivery:%s"
	keyRefundLock      = "refund:lock:%d"

	webhookRate  = 25.0
	webhookBurst = 50
	refundTTL    = 30 * time.Second
)

// Limiter throttles webhook deliveries per subscription and serializes
// refunds per order. Disabled (nil) when redis is not configured; every
// method degrades to allow.
type Limiter struct {
	bucket *TokenBucket
	locker *Locker
}

func NewFromConfig(cfg config.Config) *Limiter {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Limiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowWebhook rate-limits deliveries per subscription id. A redis failure
// fails open; throttling must never drop legitimate notifications outright.
func (l *Limiter) AllowWebhook(ctx context.Context, subscriptionID string) bool {
	if !l.Enabled() {
		return true
	}
	ok, err := l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookDelivery, subscriptionID), webhookRate, webhookBurst)
	if err != nil {
		return true
	}
	return ok
}

// TryLockRefund takes the per-order refund lock so concurrent cancellations
// cannot double-submit a refund.
func (l *Limiter) TryLockRefund(ctx context.Context, orderID int64) (string, bool) {
	if !l.Enabled() {
		return "", true
	}
	token, ok, err := l.locker.TryLock(ctx, fmt.Sprintf(keyRefundLock, orderID), refundTTL)
	if err != nil {
		return "", true
	}
	return token, ok
}

func (l *Limiter) ReleaseRefund(ctx context.Context, orderID int64, token string) {
	if !l.Enabled() || token == "" {
		return
	}
	_ = l.locker.Release(ctx, fmt.Sprintf(keyRefundLock, orderID), token)
}
