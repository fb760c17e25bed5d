// Package store keeps operator-facing records in process memory.
package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/8b-is/feedgate/internal/core"
)

// DefaultTokenCapacity is the number of token records kept before the
// oldest ones are evicted.
const DefaultTokenCapacity = 10_000

var _ core.TokenStore = (*InMemoryTokenStore)(nil)

// InMemoryTokenStore records issued session tokens by fingerprint.
// It is not consulted when verifying tokens, so eviction never invalidates one.
type InMemoryTokenStore struct {
	mu       sync.RWMutex
	byPrint  map[string]core.TokenMetadata
	order    []string // fingerprints, oldest first
	capacity int
	now      func() time.Time
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		byPrint:  make(map[string]core.TokenMetadata),
		capacity: DefaultTokenCapacity,
		now:      time.Now,
	}
}

// WithClock replaces time.Now and returns the store.
func (s *InMemoryTokenStore) WithClock(now func() time.Time) *InMemoryTokenStore {
	s.now = now
	return s
}

// WithCapacity bounds the number of records. n <= 0 keeps the default.
func (s *InMemoryTokenStore) WithCapacity(n int) *InMemoryTokenStore {
	if n > 0 {
		s.capacity = n
	}
	return s
}

// Save records meta. Saving the same fingerprint twice replaces the record.
func (s *InMemoryTokenStore) Save(_ context.Context, meta core.TokenMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta.Permissions = slices.Clone(meta.Permissions)
	key := meta.Fingerprint
	if key == "" {
		// records without a fingerprint are still listed, keyed by position
		key = "#" + meta.CorrelationID + "/" + meta.IssuedAt.Format(time.RFC3339Nano)
	}

	if _, exists := s.byPrint[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byPrint[key] = meta

	for len(s.order) > s.capacity {
		delete(s.byPrint, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// ListActive returns unexpired tokens, most recently issued first.
func (s *InMemoryTokenStore) ListActive(_ context.Context) ([]core.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	active := make([]core.TokenMetadata, 0, len(s.byPrint))
	for _, meta := range s.byPrint {
		if meta.ExpiresAt.After(now) {
			active = append(active, meta)
		}
	}
	slices.SortFunc(active, func(a, b core.TokenMetadata) int {
		return cmp.Or(b.IssuedAt.Compare(a.IssuedAt), cmp.Compare(a.Subject, b.Subject))
	})
	return active, nil
}

// Len returns the number of records, expired ones included.
func (s *InMemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPrint)
}

// DeleteExpired drops expired records and returns how many were removed.
func (s *InMemoryTokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.order[:0]
	var deleted int64
	for _, key := range s.order {
		if s.byPrint[key].ExpiresAt.After(now) {
			kept = append(kept, key)
			continue
		}
		delete(s.byPrint, key)
		deleted++
	}
	clear(s.order[len(kept):])
	s.order = kept
	return deleted, nil
}
