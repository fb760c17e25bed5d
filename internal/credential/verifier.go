package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/8b-is/feedgate/internal/core"
)

const (
	// AdminSubjectPrefix is prepended to admin usernames to form token subjects.
	AdminSubjectPrefix = "admin_"

	sha256Prefix = "sha256:"
)

// dummyDigest is compared against when an id is unknown, so that the
// unknown-id path performs the same work as the wrong-secret path.
var dummyDigest = sha256.Sum256([]byte("feedgate-unknown-identity"))

// VerifierConfig holds the static parts of the verifier.
type VerifierConfig struct {
	// Admins are the operator accounts allowed to log in.
	Admins []core.Admin

	// AdminRateLimit is the ceiling in requests per minute applied to admins.
	AdminRateLimit int

	// DefaultRateLimit applies to token subjects that are no longer registered.
	DefaultRateLimit int
}

// Verifier checks presented credentials against the registry.
type Verifier struct {
	store            core.CredentialStore
	admins           map[string]string
	adminRateLimit   int
	defaultRateLimit int
}

func NewVerifier(store core.CredentialStore, cfg VerifierConfig) *Verifier {
	admins := make(map[string]string, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[a.Username] = a.PasswordHash
	}
	return &Verifier{
		store:            store,
		admins:           admins,
		adminRateLimit:   cfg.AdminRateLimit,
		defaultRateLimit: cfg.DefaultRateLimit,
	}
}

// VerifyAgent returns the identity of the agent if secret matches.
// Unknown ids and wrong secrets both yield core.ErrInvalidCredentials.
func (v *Verifier) VerifyAgent(id, secret string) (*core.Identity, error) {
	presented := sha256.Sum256([]byte(secret))

	agent, ok := v.store.Lookup(id)
	expected := dummyDigest
	if ok {
		expected = sha256.Sum256([]byte(agent.Secret))
	}

	match := subtle.ConstantTimeCompare(presented[:], expected[:]) == 1
	if !ok || !match {
		return nil, core.ErrInvalidCredentials
	}
	return agent.Identity(), nil
}

// VerifyAdmin reports whether password matches the stored hash for username.
func (v *Verifier) VerifyAdmin(username, password string) bool {
	stored, ok := v.admins[username]
	if !ok {
		// hash anyway so unknown usernames cost the same as wrong passwords
		_ = matchPassword(hex.EncodeToString(dummyDigest[:]), password)
		return false
	}
	return matchPassword(stored, password)
}

// AdminIdentity builds the identity granted to a logged-in admin.
func (v *Verifier) AdminIdentity(username string) *core.Identity {
	return &core.Identity{
		ID:          AdminSubjectPrefix + username,
		Kind:        core.KindAdmin,
		DisplayName: fmt.Sprintf("Admin (%s)", username),
		Permissions: core.Permissions{core.Wildcard},
		RateLimit:   v.adminRateLimit,
	}
}

// RateLimitFor resolves the per-minute ceiling for a token subject.
func (v *Verifier) RateLimitFor(subject string) int {
	if agent, ok := v.store.Lookup(subject); ok {
		return agent.RateLimit
	}
	if username, ok := strings.CutPrefix(subject, AdminSubjectPrefix); ok {
		if _, known := v.admins[username]; known {
			return v.adminRateLimit
		}
	}
	return v.defaultRateLimit
}

// HashPassword returns the "sha256:<hex>" form accepted in admin configuration.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return sha256Prefix + hex.EncodeToString(sum[:])
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func matchPassword(stored, password string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}

	expected, err := hex.DecodeString(strings.ToLower(strings.TrimPrefix(stored, sha256Prefix)))
	if err != nil {
		return false
	}
	presented := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(presented[:], expected) == 1
}

// ValidPasswordHash reports whether hash is in a format VerifyAdmin understands.
func ValidPasswordHash(hash string) bool {
	if isBcrypt(hash) {
		_, err := bcrypt.Cost([]byte(hash))
		return err == nil
	}
	raw, err := hex.DecodeString(strings.ToLower(strings.TrimPrefix(hash, sha256Prefix)))
	return err == nil && len(raw) == sha256.Size
}
