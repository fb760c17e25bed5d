package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "auth.login", "identity.create")
	Action string `json:"action"`

	// Actor identifies who made the request, if known
	Actor string `json:"actor,omitempty"`

	// Subject is the identity the action was about
	Subject string `json:"subject,omitempty"`

	Granted bool   `json:"granted"`
	Error   string `json:"error,omitempty"`

	// TokenFingerprint links the entry to an issued token without storing it
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors that can serve recent entries back.
type AuditReader interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
