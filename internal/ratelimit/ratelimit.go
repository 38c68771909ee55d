// Package ratelimit throttles sign-in attempts per client with a sliding
// window. Every attempt is recorded, so a client that keeps trying while
// denied stays denied.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a denied client should wait, rounded up to a whole
// second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Second) + time.Second
}

// Store counts attempts per key inside a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter applies one limit and window to the sign-in endpoint.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// NewLimiter returns nil when limit is zero, which disables throttling.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 || store == nil {
		return nil
	}
	return &Limiter{store: store, limit: limit, window: window}
}

// CheckSignIn records one sign-in attempt from clientIP. A nil Limiter
// always allows.
func (l *Limiter) CheckSignIn(ctx context.Context, clientIP string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	return l.store.Allow(ctx, signInKey(clientIP), l.limit, l.window)
}

func signInKey(clientIP string) string {
	return "ratelimit:signin:" + clientIP
}
