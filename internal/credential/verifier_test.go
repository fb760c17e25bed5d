package credential

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/8b-is/feedgate/internal/core"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("bcrypt-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	store := NewStore(core.Agent{
		ID:          "agent_a",
		Secret:      "sk_correct",
		Name:        "Agent A",
		Permissions: core.Permissions{"feedback.submit"},
		RateLimit:   2,
	})
	return NewVerifier(store, VerifierConfig{
		Admins: []core.Admin{
			{Username: "admin", PasswordHash: HashPassword("change_me_please")},
			// bare hex digest without the sha256: prefix
			{Username: "hue", PasswordHash: HashPassword("quantum")[len("sha256:"):]},
			{Username: "ops", PasswordHash: string(hashed)},
		},
		AdminRateLimit:   1000,
		DefaultRateLimit: 60,
	})
}

func TestVerifier_VerifyAgent(t *testing.T) {
	v := newTestVerifier(t)

	ident, err := v.VerifyAgent("agent_a", "sk_correct")
	if err != nil {
		t.Fatalf("VerifyAgent() unexpected error: %v", err)
	}
	if ident.ID != "agent_a" || ident.DisplayName != "Agent A" || ident.Kind != core.KindAgent {
		t.Errorf("VerifyAgent() identity = %+v", ident)
	}
	if ident.RateLimit != 2 {
		t.Errorf("RateLimit = %d, want 2", ident.RateLimit)
	}
}

func TestVerifier_RejectsUniformly(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{name: "Unknown ID", id: "agent_nope", secret: "sk_correct"},
		{name: "Wrong Secret", id: "agent_a", secret: "sk_wrong"},
		{name: "Correct Prefix", id: "agent_a", secret: "sk_correc"},
		{name: "Empty Secret", id: "agent_a", secret: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, err := v.VerifyAgent(tt.id, tt.secret)
			if ident != nil {
				t.Errorf("VerifyAgent() returned identity %+v", ident)
			}
			if !errors.Is(err, core.ErrInvalidCredentials) || err != core.ErrInvalidCredentials {
				t.Errorf("VerifyAgent() error = %v, want exactly ErrInvalidCredentials", err)
			}
		})
	}
}

func TestVerifier_VerifyAdmin(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{name: "Prefixed SHA256", username: "admin", password: "change_me_please", want: true},
		{name: "Bare SHA256", username: "hue", password: "quantum", want: true},
		{name: "Bcrypt", username: "ops", password: "bcrypt-pass", want: true},
		{name: "Wrong Password", username: "admin", password: "nope", want: false},
		{name: "Wrong Bcrypt Password", username: "ops", password: "nope", want: false},
		{name: "Unknown User", username: "root", password: "change_me_please", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.VerifyAdmin(tt.username, tt.password); got != tt.want {
				t.Errorf("VerifyAdmin(%q) = %v, want %v", tt.username, got, tt.want)
			}
		})
	}
}

func TestVerifier_AdminIdentity(t *testing.T) {
	v := newTestVerifier(t)

	ident := v.AdminIdentity("hue")
	if ident.ID != "admin_hue" || ident.DisplayName != "Admin (hue)" {
		t.Errorf("AdminIdentity() = %+v", ident)
	}
	if !ident.Permissions.Allows("anything.at.all") {
		t.Errorf("admin identity should hold the wildcard, got %v", ident.Permissions)
	}
	if ident.RateLimit != 1000 {
		t.Errorf("RateLimit = %d, want 1000", ident.RateLimit)
	}
}

func TestVerifier_RateLimitFor(t *testing.T) {
	v := newTestVerifier(t)

	tests := map[string]int{
		"agent_a":      2,
		"admin_admin":  1000,
		"admin_nobody": 60,
		"agent_gone":   60,
	}
	for subject, want := range tests {
		if got := v.RateLimitFor(subject); got != want {
			t.Errorf("RateLimitFor(%q) = %d, want %d", subject, got, want)
		}
	}
}

func TestValidPasswordHash(t *testing.T) {
	tests := map[string]bool{
		HashPassword("x"):     true,
		HashPassword("x")[7:]: true,
		"sha256:abc":          false,
		"not-hex":             false,
		"$2a$nope":            false,
	}
	for hash, want := range tests {
		if got := ValidPasswordHash(hash); got != want {
			t.Errorf("ValidPasswordHash(%q) = %v, want %v", hash, got, want)
		}
	}
}
