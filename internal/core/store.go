package core

import (
	"context"
	"time"
)

// TokenMetadata represents the state of an issued session token.
type TokenMetadata struct {
	// CorrelationID is the ID of the request that created the token.
	CorrelationID string `json:"correlation_id"`

	// Subject is the identity the token was issued to.
	Subject string `json:"subject"`

	DisplayName string      `json:"name"`
	Permissions Permissions `json:"permissions"`

	// Fingerprint identifies the token without revealing it.
	Fingerprint string `json:"fingerprint"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore keeps a record of issued tokens for operators.
// It is informational only; tokens are never revoked through it.
type TokenStore interface {
	// Save records a new issued token
	Save(ctx context.Context, meta TokenMetadata) error

	// ListActive returns tokens that have not expired yet
	ListActive(ctx context.Context) ([]TokenMetadata, error)
}
