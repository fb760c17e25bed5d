package core

// CredentialStore is the registry of known agents.
// Implementations must be safe for concurrent readers and a single writer.
type CredentialStore interface {
	// Lookup returns the agent registered under id.
	Lookup(id string) (Agent, bool)

	// Put registers a new agent; it fails with ErrIdentityExists if the id is taken.
	Put(agent Agent) error

	// Delete removes the agent and reports whether it existed.
	Delete(id string) bool

	// List returns all agents ordered by id.
	List() []Agent
}
