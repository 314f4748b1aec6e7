package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/schoolbill/internal/config"
)

const (
	keyWriteClient = "schoolbill:write:client:%s"
	keyInvoiceLock = "schoolbill:invoice:lock:%s"
)

// Bucket is the token bucket behind client throttling.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

// LeaseLocker hands out expiring exclusive leases.
type LeaseLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
	Release(ctx context.Context, lease Lease) error
}

// WriteLimiter throttles invoice writes per client and serialises confirm and cancel per invoice.
// A nil limiter allows everything.
type WriteLimiter struct {
	bucket  Bucket
	locker  LeaseLocker
	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewWriteLimiter(cfg config.Config) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}
	if limitCfg.InvoiceLockTTLSeconds <= 0 {
		return nil, errors.New("invoice lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return NewWriteLimiterWith(NewTokenBucket(client), NewLocker(client), limitCfg), nil
}

// NewWriteLimiterWith builds a limiter over an existing bucket and locker. The rate limit
// config is taken as already validated.
func NewWriteLimiterWith(bucket Bucket, locker LeaseLocker, cfg config.RateLimitConfig) *WriteLimiter {
	return &WriteLimiter{
		bucket:  bucket,
		locker:  locker,
		rate:    cfg.WriteRate,
		burst:   cfg.WriteBurst,
		lockTTL: time.Duration(cfg.InvoiceLockTTLSeconds) * time.Second,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowClient(ctx context.Context, clientID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteClient, strings.TrimSpace(clientID)), l.rate, l.burst)
}

// LockInvoice returns ok=false while another confirm or cancel holds the invoice.
func (l *WriteLimiter) LockInvoice(ctx context.Context, invoiceID string) (Lease, bool, error) {
	if !l.Enabled() || l.locker == nil {
		return Lease{}, true, nil
	}
	return l.locker.Acquire(ctx, fmt.Sprintf(keyInvoiceLock, strings.TrimSpace(invoiceID)), l.lockTTL)
}

func (l *WriteLimiter) UnlockInvoice(ctx context.Context, lease Lease) error {
	if !l.Enabled() || l.locker == nil {
		return nil
	}
	return l.locker.Release(ctx, lease)
}
