package audit

import (
	"sync"

	"github.com/8b-is/feedgate/internal/core"
)

// DefaultMemoryCapacity is the number of entries kept by NewInMemoryAuditor(0).
const DefaultMemoryCapacity = 1000

var (
	_ core.Auditor     = (*InMemoryAuditor)(nil)
	_ core.AuditReader = (*InMemoryAuditor)(nil)
)

// InMemoryAuditor is a ring of the most recent entries.
type InMemoryAuditor struct {
	mu   sync.Mutex
	ring []core.AuditEntry
	next int // slot the next entry goes into
	full bool
}

func NewInMemoryAuditor(capacity int) *InMemoryAuditor {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryAuditor{ring: make([]core.AuditEntry, capacity)}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.ring[i.next] = entry
	i.next = (i.next + 1) % len(i.ring)
	if i.next == 0 {
		i.full = true
	}
	return nil
}

// GetRecent returns up to limit entries, oldest first. limit <= 0 returns all.
func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	return i.Find(nil, limit)
}

// Find returns the last limit entries matching filter, oldest first.
// A nil filter matches everything.
func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	size, start := i.next, 0
	if i.full {
		size, start = len(i.ring), i.next
	}

	// walk newest to oldest so the limit keeps the most recent matches
	var matches []core.AuditEntry
	for n := size - 1; n >= 0; n-- {
		entry := i.ring[(start+n)%len(i.ring)]
		if filter != nil && !filter(entry) {
			continue
		}
		matches = append(matches, entry)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	for l, r := 0, len(matches)-1; l < r; l, r = l+1, r-1 {
		matches[l], matches[r] = matches[r], matches[l]
	}
	return matches, nil
}

func (i *InMemoryAuditor) Close() error { return nil }
