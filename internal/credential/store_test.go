package credential

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/8b-is/feedgate/internal/core"
)

func TestStore_PutLookupDelete(t *testing.T) {
	s := NewStore()

	agent := core.Agent{
		ID:          "agent_a",
		Secret:      "sk_a",
		Name:        "A",
		Permissions: core.Permissions{"feedback.submit"},
		RateLimit:   2,
	}
	if err := s.Put(agent); err != nil {
		t.Fatalf("Put() unexpected error: %v", err)
	}
	if err := s.Put(agent); !errors.Is(err, core.ErrIdentityExists) {
		t.Fatalf("Put() duplicate error = %v, want ErrIdentityExists", err)
	}

	got, ok := s.Lookup("agent_a")
	if !ok {
		t.Fatalf("Lookup() did not find agent")
	}
	if diff := cmp.Diff(agent, got); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}

	if !s.Delete("agent_a") {
		t.Errorf("Delete() = false, want true")
	}
	if s.Delete("agent_a") {
		t.Errorf("second Delete() = true, want false")
	}
	if _, ok := s.Lookup("agent_a"); ok {
		t.Errorf("Lookup() found deleted agent")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(core.Agent{ID: "agent_a", Permissions: core.Permissions{"a"}})

	got, _ := s.Lookup("agent_a")
	got.Permissions[0] = "*"

	again, _ := s.Lookup("agent_a")
	if again.Permissions[0] != "a" {
		t.Fatalf("mutating a looked-up agent changed the registry: %v", again.Permissions)
	}
}

func TestStore_ListSorted(t *testing.T) {
	s := NewStore(
		core.Agent{ID: "agent_c"},
		core.Agent{ID: "agent_a"},
		core.Agent{ID: "agent_b"},
	)

	var ids []string
	for _, a := range s.List() {
		ids = append(ids, a.ID)
	}
	want := []string{"agent_a", "agent_b", "agent_c"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("List() order mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Put(core.Agent{ID: "agent_shared"})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Lookup("agent_shared")
			_ = s.List()
		}()
	}
	wg.Wait()

	if got := len(s.List()); got != 1 {
		t.Fatalf("expected exactly one registered agent, got %d", got)
	}
}

func TestAgentIDFromName(t *testing.T) {
	tests := map[string]string{
		"Build Bot":   "agent_build_bot",
		"  claude  ":  "agent_claude",
		"GPT 4 Agent": "agent_gpt_4_agent",
	}
	for name, want := range tests {
		if got := AgentIDFromName(name); got != want {
			t.Errorf("AgentIDFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error: %v", err)
	}
	b, _ := GenerateSecret()
	if a == b {
		t.Errorf("two generated secrets are equal: %s", a)
	}
	if len(a) != len(SecretPrefix)+32 {
		t.Errorf("secret length = %d, want %d", len(a), len(SecretPrefix)+32)
	}
	if got := SecretPreview(a); got != a[:10] {
		t.Errorf("SecretPreview() = %q, want %q", got, a[:10])
	}
	if got := SecretPreview("short"); got != "***" {
		t.Errorf("SecretPreview(short) = %q, want ***", got)
	}
}
