package core

import (
	"slices"
	"time"
)

// Wildcard grants every capability, including ones that do not exist yet.
const Wildcard = "*"

// IdentityKind distinguishes the two kinds of callers.
type IdentityKind string

const (
	KindAgent IdentityKind = "agent"
	KindAdmin IdentityKind = "admin"
)

// Permissions is an unordered set of capability tags.
type Permissions []string

// Allows reports whether the set contains the wildcard or the exact capability.
func (p Permissions) Allows(capability string) bool {
	for _, perm := range p {
		if perm == Wildcard || perm == capability {
			return true
		}
	}
	return false
}

// Normalize returns a sorted copy without duplicates or empty tags.
func (p Permissions) Normalize() Permissions {
	out := make(Permissions, 0, len(p))
	for _, perm := range p {
		if perm == "" {
			continue
		}
		out = append(out, perm)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Agent is a registered autonomous client, loaded from configuration or
// created through the admin surface.
type Agent struct {
	// ID is the unique identifier the agent presents, e.g. "agent_claude_001".
	ID string `yaml:"id" json:"id"`

	// Secret is the shared secret the agent presents next to its ID.
	Secret string `yaml:"secret" json:"-"`

	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`

	// Permissions granted to the agent.
	Permissions Permissions `yaml:"permissions" json:"permissions"`

	// RateLimit is the ceiling in requests per minute.
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`
}

// Admin is a human operator allowed to log in with a password.
type Admin struct {
	Username string `yaml:"username"`

	// PasswordHash is either a hex SHA-256 digest (optionally prefixed with "sha256:")
	// or a bcrypt hash.
	PasswordHash string `yaml:"password_hash"`
}

// Identity is a verified caller.
type Identity struct {
	ID          string       `json:"id"`
	Kind        IdentityKind `json:"kind"`
	DisplayName string       `json:"name"`
	Permissions Permissions  `json:"permissions"`
	RateLimit   int          `json:"rate_limit"`
}

// Identity converts the registry entry into a verified identity.
func (a Agent) Identity() *Identity {
	return &Identity{
		ID:          a.ID,
		Kind:        KindAgent,
		DisplayName: a.Name,
		Permissions: slices.Clone(a.Permissions),
		RateLimit:   a.RateLimit,
	}
}

// Claims are the decoded, verified contents of a session token.
type Claims struct {
	Subject     string      `json:"sub"`
	DisplayName string      `json:"name"`
	Permissions Permissions `json:"permissions"`
	IssuedAt    time.Time   `json:"issued_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// IssuedToken is the result of a successful token issuance.
type IssuedToken struct {
	// Value is the signed token handed to the client.
	Value string `json:"access_token"`

	// Claims embedded in Value.
	Claims Claims `json:"-"`
}

// ExpiresIn returns the token lifetime relative to its issuance.
func (t *IssuedToken) ExpiresIn() time.Duration {
	return t.Claims.ExpiresAt.Sub(t.Claims.IssuedAt)
}

// Quota is the rate-limit metadata attached to responses.
type Quota struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}
