package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint identifies a token in logs and listings without revealing it.
// The same token always yields the same fingerprint.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:12])
}
