package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Counter is the subset of the cache the limiter needs.
type Counter interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces fixed-window attempt budgets on cache counters.
type Limiter struct {
	store  Counter
	config Config
}

// New creates a rate [Limiter] backed by the given counter store.
func New(store Counter, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		config: cfg,
	}
}

// Allow rejects with [ErrRateLimited] once key has reached MaxAttempts in
// the current window, and otherwise counts this attempt. Store failures are
// returned wrapped in [ErrStoreUnavailable]; callers decide whether to fail
// open.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	count, err := l.Count(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	_, err = l.Record(ctx, key, l.config.Window)
	return err
}

// Record increments key and starts its TTL on the first hit.
func (l *Limiter) Record(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.store.Increment(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.store.Expire(ctx, key, ttl); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return count, nil
}

// Count returns the current counter for key. Missing or garbage values read
// as zero.
func (l *Limiter) Count(ctx context.Context, key string) (int64, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}
