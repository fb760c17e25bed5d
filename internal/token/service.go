// Package token issues and verifies the HS256 session tokens handed to agents and admins.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/8b-is/feedgate/internal/core"
)

const (
	// Issuer is written to and required in the "iss" claim.
	Issuer = "feedgate"

	DefaultLifetime = 24 * time.Hour

	// KeySize is the length of generated signing keys.
	KeySize = 32
)

var signingMethod = jwt.SigningMethodHS256

type sessionClaims struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a process-wide key.
// The key is fixed for the lifetime of the Service.
type Service struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLifetime sets how long issued tokens stay valid.
func WithLifetime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

func NewService(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key must not be empty")
	}
	s := &Service{
		key:      slices.Clone(key),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateKey returns KeySize random bytes for use as a signing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return key, nil
}

// Lifetime returns the configured token lifetime.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity that expires after the configured lifetime.
func (s *Service) Issue(identity *core.Identity) (*core.IssuedToken, error) {
	if identity == nil || identity.ID == "" {
		return nil, errors.New("cannot issue token without identity")
	}

	now := s.now().Truncate(jwt.TimePrecision)
	exp := now.Add(s.lifetime)
	perms := slices.Clone([]string(identity.Permissions))
	if perms == nil {
		perms = []string{}
	}

	claims := sessionClaims{
		Name:        identity.DisplayName,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &core.IssuedToken{
		Value: signed,
		Claims: core.Claims{
			Subject:     identity.ID,
			DisplayName: identity.DisplayName,
			Permissions: core.Permissions(perms),
			IssuedAt:    now,
			ExpiresAt:   exp,
		},
	}, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// It returns core.ErrExpiredToken for expired tokens and core.ErrInvalidToken for everything else.
// A token counts as expired from the exact second of its exp claim onward.
func (s *Service) Verify(raw string) (*core.Claims, error) {
	var claims sessionClaims

	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", core.ErrInvalidToken)
	}

	out := &core.Claims{
		Subject:     claims.Subject,
		DisplayName: claims.Name,
		Permissions: core.Permissions(claims.Permissions),
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
