// Package ratelimit implements fixed-window request counting. A window is
// anchored at the first request for a key; every request inside it increments
// a single counter, and the counter vanishes when the window ends. Windows
// are never slid or prorated.
package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Store counts hits per key inside a fixed window. Incr records one hit and
// returns the hit count for the current window together with the instant the
// window resets. Implementations must start a fresh window when the previous
// one has expired.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds a denied caller should wait before
// retrying, rounded up so the advertised wait is never shorter than the
// actual one. It is at least 1 for a denied request inside a live window.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter admits up to limit requests per key per window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *zap.Logger

	now func() time.Time
}

// NewLimiter builds a limiter over the given store.
func NewLimiter(store Store, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger.Named("ratelimit"),
		now:    time.Now,
	}
}

// Allow records one hit for key and reports whether it fits the window. The
// hit is counted even when the request ends up denied; a client hammering a
// full window does not get extra budget for it.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Result{}, err
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(l.limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		l.logger.Debug("Request denied by rate limit",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Time("reset_at", resetAt))
	}
	return res, nil
}
