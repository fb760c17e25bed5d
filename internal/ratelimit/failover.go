package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/core"
)

// Store is a shared-store limiter that can be health-checked.
type Store interface {
	Limiter
	Ping(ctx context.Context) error
}

// Failover answers from the shared store until it fails once, then answers from the
// local fallback for the rest of the process lifetime. Recheck can restore the store.
type Failover struct {
	primary  Store
	fallback Limiter
	degraded atomic.Bool
	observer Observer
}

var _ Limiter = (*Failover)(nil)

func NewFailover(primary Store, fallback Limiter, opts ...Option) *Failover {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		observer: o.observer,
	}
}

// Name returns the name of the backend currently answering.
func (f *Failover) Name() string {
	if f.degraded.Load() {
		return f.fallback.Name()
	}
	return f.primary.Name()
}

// Degraded reports whether the fallback is in use.
func (f *Failover) Degraded() bool {
	return f.degraded.Load()
}

func (f *Failover) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if err := validate(limit, window); err != nil {
		return Decision{}, err
	}

	if !f.degraded.Load() {
		d, err := f.primary.Allow(ctx, identifier, limit, window)
		if err == nil {
			return d, nil
		}
		f.fail(ctx, err)
	}

	d, err := f.fallback.Allow(ctx, identifier, limit, window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", core.ErrLimiterUnavailable, err)
	}
	return d, nil
}

func (f *Failover) Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (core.Quota, error) {
	if err := validate(limit, window); err != nil {
		return core.Quota{}, err
	}

	if !f.degraded.Load() {
		q, err := f.primary.Remaining(ctx, identifier, limit, window)
		if err == nil {
			return q, nil
		}
		f.fail(ctx, err)
	}

	q, err := f.fallback.Remaining(ctx, identifier, limit, window)
	if err != nil {
		return core.Quota{}, fmt.Errorf("%w: %w", core.ErrLimiterUnavailable, err)
	}
	return q, nil
}

// fail switches to the fallback. A cancelled caller context says nothing about the
// store, so the request is answered locally without switching.
func (f *Failover) fail(ctx context.Context, err error) {
	f.observer.LimiterStoreError(f.primary.Name())
	if ctx.Err() != nil {
		return
	}
	f.degrade(err)
}

func (f *Failover) degrade(err error) {
	if !f.degraded.CompareAndSwap(false, true) {
		return
	}
	f.observer.LimiterDegraded(true)
	log.Warn().
		Err(err).
		Str("store", f.primary.Name()).
		Str("fallback", f.fallback.Name()).
		Msg("rate limit store failed, degrading to local fallback")
}

// Recheck pings the store once while degraded and restores it on success.
// It reports whether the store is in use afterwards.
func (f *Failover) Recheck(ctx context.Context) bool {
	if !f.degraded.Load() {
		return true
	}
	if err := f.primary.Ping(ctx); err != nil {
		log.Debug().Err(err).Str("store", f.primary.Name()).Msg("rate limit store still unreachable")
		return false
	}
	if f.degraded.CompareAndSwap(true, false) {
		f.observer.LimiterDegraded(false)
		log.Info().Str("store", f.primary.Name()).Msg("rate limit store recovered")
	}
	return true
}
