// Package ratelimit bounds the number of requests an identifier may make within a window.
//
// Two strategies live behind the Limiter interface and are not equivalent:
// SlidingWindow counts exact requests in the trailing window using a shared Redis store,
// FixedWindow resets a per-process counter at discrete boundaries and can admit up to
// twice the limit across a boundary. Failover combines the two.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/8b-is/feedgate/internal/core"
)

// ErrInvalidLimit is returned for non-positive limits or windows below one millisecond.
var ErrInvalidLimit = errors.New("invalid rate limit")

// Decision is the outcome of a single check.
type Decision struct {
	Allowed bool
	Quota   core.Quota

	// RetryAfter is set on denials and tells the caller when the next request may succeed.
	RetryAfter time.Duration
}

// Limiter is implemented by every rate-limiting strategy.
type Limiter interface {
	// Name identifies the backend, e.g. "redis" or "memory".
	Name() string

	// Allow records a request for identifier if it is within limit per window.
	// Denied requests are not recorded.
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error)

	// Remaining reports the current quota for identifier without recording a request.
	Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (core.Quota, error)
}

// Observer receives backend state changes. metrics.Metrics implements it.
type Observer interface {
	LimiterDegraded(degraded bool)
	LimiterStoreError(backend string)
}

type nopObserver struct{}

func (nopObserver) LimiterDegraded(bool)     {}
func (nopObserver) LimiterStoreError(string) {}

type options struct {
	now       func() time.Time
	keyPrefix string
	timeout   time.Duration
	observer  Observer
}

func defaultOptions() options {
	return options{
		now:       time.Now,
		keyPrefix: DefaultKeyPrefix,
		timeout:   DefaultStoreTimeout,
		observer:  nopObserver{},
	}
}

type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithKeyPrefix sets the prefix of Redis keys. Defaults to "rate_limit:".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithTimeout bounds every call to the shared store.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func validate(limit int, window time.Duration) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidLimit, limit)
	}
	if window < time.Millisecond {
		return fmt.Errorf("%w: window must be at least 1ms, got %s", ErrInvalidLimit, window)
	}
	return nil
}

func denied(limit int, retry time.Duration) Decision {
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Allowed:    false,
		RetryAfter: retry,
		Quota:      core.Quota{Limit: limit, Remaining: 0, ResetIn: retry},
	}
}

func allowed(limit, count int, reset time.Duration) Decision {
	if reset < 0 {
		reset = 0
	}
	return Decision{
		Allowed: true,
		Quota:   core.Quota{Limit: limit, Remaining: max(0, limit-count), ResetIn: reset},
	}
}
