package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/8b-is/feedgate/internal/core"
)

type fixedEntry struct {
	count   int
	resetAt time.Time
}

// FixedWindow is the in-process strategy. A single mutex guards the whole table.
// Counts are local to the process and reset at window boundaries, so a caller may
// get up to 2*limit requests through around a boundary.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]fixedEntry
	now     func() time.Time
}

var _ Limiter = (*FixedWindow)(nil)

func NewFixedWindow(opts ...Option) *FixedWindow {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &FixedWindow{
		entries: make(map[string]fixedEntry),
		now:     o.now,
	}
}

func (f *FixedWindow) Name() string {
	return "memory"
}

func (f *FixedWindow) Allow(_ context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if err := validate(limit, window); err != nil {
		return Decision{}, err
	}
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[identifier]
	if !ok || !now.Before(entry.resetAt) {
		entry = fixedEntry{count: 0, resetAt: now.Add(window)}
	}

	if entry.count >= limit {
		f.entries[identifier] = entry
		return denied(limit, entry.resetAt.Sub(now)), nil
	}

	entry.count++
	f.entries[identifier] = entry
	return allowed(limit, entry.count, entry.resetAt.Sub(now)), nil
}

// Remaining treats an unknown or expired window as an untouched one.
func (f *FixedWindow) Remaining(_ context.Context, identifier string, limit int, window time.Duration) (core.Quota, error) {
	if err := validate(limit, window); err != nil {
		return core.Quota{}, err
	}
	now := f.now()

	f.mu.Lock()
	entry, ok := f.entries[identifier]
	f.mu.Unlock()

	if !ok || !now.Before(entry.resetAt) {
		return core.Quota{Limit: limit, Remaining: limit, ResetIn: window}, nil
	}
	return core.Quota{
		Limit:     limit,
		Remaining: max(0, limit-entry.count),
		ResetIn:   entry.resetAt.Sub(now),
	}, nil
}

// Prune drops all windows that have already ended and returns how many were removed.
func (f *FixedWindow) Prune() int {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for id, entry := range f.entries {
		if !now.Before(entry.resetAt) {
			delete(f.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
