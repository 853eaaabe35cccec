package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableFetchThrottle  bool
	MaxFetchFailures     int
	FetchFailureWindow   time.Duration
	EnableUploadThrottle bool
	MaxUploads           int
	UploadWindow         time.Duration
}

// Limiter enforces per-IP budgets for failed fetches and uploads using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckFetch reports whether ip may attempt another lookup. It does not count the attempt.
func (l *Limiter) CheckFetch(ctx context.Context, ip string) error {
	if !l.config.EnableFetchThrottle || ip == "" {
		return nil
	}
	return l.checkCounter(ctx, fetchFailureKey(ip), l.config.MaxFetchFailures)
}

// IncrementFetchFailure records a lookup that matched no pending session.
func (l *Limiter) IncrementFetchFailure(ctx context.Context, ip string) error {
	if !l.config.EnableFetchThrottle || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, fetchFailureKey(ip), l.config.FetchFailureWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxFetchFailures) {
		return ErrRateLimited
	}
	return nil
}

// ResetFetch clears the failure counter for ip after a successful fetch.
func (l *Limiter) ResetFetch(ctx context.Context, ip string) error {
	if !l.config.EnableFetchThrottle || ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, fetchFailureKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckUpload counts an upload from ip and rejects it once the window budget is spent.
func (l *Limiter) CheckUpload(ctx context.Context, ip string) error {
	if !l.config.EnableUploadThrottle || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, uploadKey(ip), l.config.UploadWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxUploads) {
		return ErrRateLimited
	}
	return nil
}

// FetchFailures returns the current failure count for ip.
func (l *Limiter) FetchFailures(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, fetchFailureKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func fetchFailureKey(ip string) string {
	return "rff:" + ip
}

func uploadKey(ip string) string {
	return "rup:" + ip
}
