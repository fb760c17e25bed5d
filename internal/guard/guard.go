// Package guard runs the per-request access pipeline:
// authenticate, check the route capability, then charge the rate limit.
//
// Each request moves through
//
//	Unauthenticated -> Authenticated -> PermissionChecked -> RateChecked -> Completed
//
// and stops early in AuthFailed, PermissionDenied or RateLimited.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/credential"
	"github.com/8b-is/feedgate/internal/permission"
	"github.com/8b-is/feedgate/internal/ratelimit"
)

// IdentityWindow is the window over which an identity's rate limit is enforced.
const IdentityWindow = time.Minute

type State string

const (
	StateUnauthenticated   State = "Unauthenticated"
	StateAuthenticated     State = "Authenticated"
	StatePermissionChecked State = "PermissionChecked"
	StateRateChecked       State = "RateChecked"
	StateCompleted         State = "Completed"

	StateAuthFailed       State = "AuthFailed"
	StatePermissionDenied State = "PermissionDenied"
	StateRateLimited      State = "RateLimited"
)

// Method is the credential form that authenticated the caller.
type Method string

const (
	MethodNone   Method = ""
	MethodBearer Method = "bearer"
	MethodAPIKey Method = "api_key"
)

// Credentials are the credential forms presented on one request.
type Credentials struct {
	// BearerToken is the value after "Bearer " in the Authorization header.
	BearerToken string

	// APIKey is the raw X-API-Key header, "agent_id:secret" for agents.
	APIKey string

	// RemoteAddr is the client address used to rate limit anonymous callers.
	RemoteAddr string
}

// Requirement is what a route demands of its callers.
type Requirement struct {
	// Capability is checked against the caller's permissions. Empty means any authenticated caller.
	Capability string

	// Anonymous routes skip authentication and rate limit by address or API key hash.
	Anonymous bool

	// Limit and Window are the ceiling for anonymous routes. Zero uses the guard defaults.
	Limit  int
	Window time.Duration
}

// Verdict is the outcome of Check.
type Verdict struct {
	State    State
	Identity *core.Identity
	Method   Method

	// Claims are set when the caller authenticated with a bearer token.
	Claims *core.Claims

	// Quota is set whenever the rate limiter was consulted.
	Quota *core.Quota

	// Err is the denial reason; nil when Completed.
	Err error

	// Trail lists every state the request passed through, in order.
	Trail []State

	rateKey    string
	rateLimit  int
	rateWindow time.Duration
}

func (v *Verdict) Allowed() bool {
	return v.State == StateCompleted
}

// Kind classifies the denial for the caller.
func (v *Verdict) Kind() core.ErrorKind {
	return core.KindOf(v.Err)
}

func (v *Verdict) enter(s State) {
	v.State = s
	v.Trail = append(v.Trail, s)
}

func (v *Verdict) deny(s State, err error) {
	v.enter(s)
	v.Err = err
}

// TokenVerifier is implemented by token.Service.
type TokenVerifier interface {
	Verify(raw string) (*core.Claims, error)
}

// AgentVerifier is implemented by credential.Verifier.
type AgentVerifier interface {
	VerifyAgent(id, secret string) (*core.Identity, error)
	RateLimitFor(subject string) int
}

// Observer is notified of every final verdict.
type Observer interface {
	ObserveVerdict(state, kind string)
}

type Config struct {
	// DefaultLimit and DefaultWindow apply to anonymous routes without their own ceiling.
	DefaultLimit  int
	DefaultWindow time.Duration

	Observer Observer
}

type Guard struct {
	tokens  TokenVerifier
	agents  AgentVerifier
	limiter ratelimit.Limiter

	defaultLimit  int
	defaultWindow time.Duration
	observer      Observer
}

func New(tokens TokenVerifier, agents AgentVerifier, limiter ratelimit.Limiter, cfg Config) *Guard {
	g := &Guard{
		tokens:        tokens,
		agents:        agents,
		limiter:       limiter,
		defaultLimit:  cfg.DefaultLimit,
		defaultWindow: cfg.DefaultWindow,
		observer:      cfg.Observer,
	}
	if g.defaultLimit <= 0 {
		g.defaultLimit = 60
	}
	if g.defaultWindow <= 0 {
		g.defaultWindow = time.Minute
	}
	return g
}

// Check runs the pipeline for one request. Denials are reported in the verdict;
// the returned error is non-nil only when no rate limit verdict could be produced.
func (g *Guard) Check(ctx context.Context, creds Credentials, req Requirement) (Verdict, error) {
	v := Verdict{}
	v.enter(StateUnauthenticated)

	err := g.run(ctx, &v, creds, req)
	if g.observer != nil {
		g.observer.ObserveVerdict(string(v.State), string(v.Kind()))
	}
	return v, err
}

func (g *Guard) run(ctx context.Context, v *Verdict, creds Credentials, req Requirement) error {
	if req.Anonymous {
		limit, window := req.Limit, req.Window
		if limit <= 0 {
			limit = g.defaultLimit
		}
		if window <= 0 {
			window = g.defaultWindow
		}
		if creds.APIKey != "" && creds.RemoteAddr != "" {
			// a rotating key still drains the address bucket
			if ok, err := g.allow(ctx, v, "ip:"+creds.RemoteAddr, limit, window); !ok || err != nil {
				return err
			}
		}
		return g.charge(ctx, v, AnonymousKey(creds), limit, window)
	}

	identity, claims, method, err := g.authenticate(creds)
	if err != nil {
		v.deny(StateAuthFailed, err)
		return nil
	}
	v.Identity = identity
	v.Claims = claims
	v.Method = method
	v.enter(StateAuthenticated)

	if req.Capability != "" {
		if err := permission.Require(identity.Permissions, req.Capability); err != nil {
			v.deny(StatePermissionDenied, err)
			return nil
		}
	}
	v.enter(StatePermissionChecked)

	return g.charge(ctx, v, identityKey(identity.ID), identity.RateLimit, IdentityWindow)
}

func (g *Guard) authenticate(creds Credentials) (*core.Identity, *core.Claims, Method, error) {
	switch {
	case creds.BearerToken != "":
		claims, err := g.tokens.Verify(creds.BearerToken)
		if err != nil {
			return nil, nil, MethodNone, err
		}
		return g.identityFromClaims(claims), claims, MethodBearer, nil

	case creds.APIKey != "":
		id, secret, ok := strings.Cut(creds.APIKey, ":")
		if !ok || id == "" || secret == "" {
			return nil, nil, MethodNone, fmt.Errorf("%w: malformed api key", core.ErrInvalidCredentials)
		}
		identity, err := g.agents.VerifyAgent(id, secret)
		if err != nil {
			return nil, nil, MethodNone, err
		}
		return identity, nil, MethodAPIKey, nil

	default:
		return nil, nil, MethodNone, core.ErrMissingCredentials
	}
}

func (g *Guard) identityFromClaims(claims *core.Claims) *core.Identity {
	kind := core.KindAgent
	if strings.HasPrefix(claims.Subject, credential.AdminSubjectPrefix) {
		kind = core.KindAdmin
	}
	return &core.Identity{
		ID:          claims.Subject,
		Kind:        kind,
		DisplayName: claims.DisplayName,
		Permissions: claims.Permissions,
		RateLimit:   g.agents.RateLimitFor(claims.Subject),
	}
}

func (g *Guard) charge(ctx context.Context, v *Verdict, key string, limit int, window time.Duration) error {
	if ok, err := g.allow(ctx, v, key, limit, window); !ok || err != nil {
		return err
	}
	v.enter(StateRateChecked)
	v.enter(StateCompleted)
	return nil
}

// allow counts one request against key. A denial is recorded in v.
func (g *Guard) allow(ctx context.Context, v *Verdict, key string, limit int, window time.Duration) (bool, error) {
	v.rateKey, v.rateLimit, v.rateWindow = key, limit, window

	d, err := g.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		v.Err = err
		return false, fmt.Errorf("rate limiting %s: %w", key, err)
	}
	v.Quota = &d.Quota

	if !d.Allowed {
		v.deny(StateRateLimited, &core.RateLimitedError{RetryAfter: d.RetryAfter})
		return false, nil
	}
	return true, nil
}

// Quota reads the current quota of the caller behind v without charging it.
func (g *Guard) Quota(ctx context.Context, v Verdict) (core.Quota, error) {
	if v.rateKey == "" {
		return core.Quota{}, fmt.Errorf("verdict has no rate limit key")
	}
	return g.limiter.Remaining(ctx, v.rateKey, v.rateLimit, v.rateWindow)
}

// identityKey is shared by every authentication method of one identity.
func identityKey(id string) string {
	return "agent:" + id
}

// AnonymousKey is the rate limit identifier for unauthenticated callers:
// a short hash of the presented API key, or the client address.
func AnonymousKey(creds Credentials) string {
	if creds.APIKey != "" {
		sum := sha256.Sum256([]byte(creds.APIKey))
		return "api_key:" + hex.EncodeToString(sum[:])[:16]
	}
	return "ip:" + creds.RemoteAddr
}
