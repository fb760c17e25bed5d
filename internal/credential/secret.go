package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	AgentIDPrefix = "agent_"
	SecretPrefix  = "sk_"
)

// GenerateSecret returns a new random agent secret ("sk_" + 32 hex chars).
func GenerateSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(b), nil
}

// AgentIDFromName derives the registry id for a newly created agent,
// e.g. "Build Bot" becomes "agent_build_bot".
func AgentIDFromName(name string) string {
	return AgentIDPrefix + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// SecretPreview returns the first 10 characters of a secret for display.
func SecretPreview(secret string) string {
	if len(secret) <= 10 {
		return "***"
	}
	return secret[:10]
}
