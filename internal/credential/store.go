package credential

import (
	"slices"
	"strings"
	"sync"

	"github.com/8b-is/feedgate/internal/core"
)

var _ core.CredentialStore = (*Store)(nil)

// Store is the in-memory agent registry.
type Store struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
}

func NewStore(agents ...core.Agent) *Store {
	s := &Store{agents: make(map[string]core.Agent, len(agents))}
	for _, a := range agents {
		s.Replace(a)
	}
	return s
}

func (s *Store) Lookup(id string) (core.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return core.Agent{}, false
	}
	return clone(a), true
}

func (s *Store) Put(agent core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; exists {
		return core.ErrIdentityExists
	}
	s.agents[agent.ID] = clone(agent)
	return nil
}

// Replace registers agent, overwriting any previous entry with the same id.
// It is used while bootstrapping from configuration.
func (s *Store) Replace(agent core.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = clone(agent)
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return false
	}
	delete(s.agents, id)
	return true
}

func (s *Store) List() []core.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, clone(a))
	}
	slices.SortFunc(out, func(a, b core.Agent) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func clone(a core.Agent) core.Agent {
	a.Permissions = slices.Clone(a.Permissions)
	return a
}
