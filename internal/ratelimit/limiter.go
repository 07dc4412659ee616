// Package ratelimit implements a fixed-window request limiter keyed by
// client identity. The window storage is injectable so single-process
// deployments can use the in-memory store while multi-process deployments
// share counts through Redis.
package ratelimit

import (
	"context"
	"time"
)

// Defaults for the signed-URL issuance endpoint.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 60
)

// Window is one client's counter for the current fixed window.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Result is the outcome of one limiter check.
type Result struct {
	Exceeded bool
	ResetAt  time.Time
}

// Store persists per-key windows. Incr ticks the counter for key, resetting
// the window first when now is strictly past its ResetAt, and returns the
// post-increment state.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error)
}

// Limiter applies the fixed-window algorithm over a Store.
type Limiter struct {
	store  Store
	window time.Duration
	max    int
}

// New creates a limiter. Zero window/max fall back to the defaults.
func New(store Store, window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &Limiter{store: store, window: window, max: max}
}

// Allow records one request for key and reports whether the key has
// exceeded its budget for the current window. ResetAt tells the caller
// when the window rolls over, for retry-after hints.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	w, err := l.store.Incr(ctx, key, l.window, time.Now())
	if err != nil {
		// Fail open: issuance stays available if the shared store is down.
		return Result{Exceeded: false, ResetAt: time.Now().Add(l.window)}, err
	}
	return Result{Exceeded: w.Count > l.max, ResetAt: w.ResetAt}, nil
}
