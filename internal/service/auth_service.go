package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/audit"
	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/credential"
	"github.com/8b-is/feedgate/internal/permission"
)

// DefaultAgentRateLimit applies to agents created without an explicit ceiling.
const DefaultAgentRateLimit = 60

// Verifier checks agent and admin credentials.
type Verifier interface {
	VerifyAgent(id, secret string) (*core.Identity, error)
	VerifyAdmin(username, password string) bool
	AdminIdentity(username string) *core.Identity
}

// Issuer signs session tokens for verified identities.
type Issuer interface {
	Issue(identity *core.Identity) (*core.IssuedToken, error)
}

// IssueObserver is notified for every token handed out.
type IssueObserver interface {
	TokenIssued(kind string)
}

// Deps bundles everything the AuthService needs.
type Deps struct {
	Verifier   Verifier
	Issuer     Issuer
	Agents     core.CredentialStore
	Auditor    core.Auditor
	TokenStore core.TokenStore
	Observer   IssueObserver

	// Now is used for audit timestamps. Defaults to time.Now.
	Now func() time.Time
}

// AuthService implements login, token exchange and identity administration.
type AuthService struct {
	verifier   Verifier
	issuer     Issuer
	agents     core.CredentialStore
	auditor    core.Auditor
	tokenStore core.TokenStore
	observer   IssueObserver
	now        func() time.Time
}

func NewAuthService(d Deps) *AuthService {
	if d.Auditor == nil {
		d.Auditor = audit.NoopAuditor{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &AuthService{
		verifier:   d.Verifier,
		issuer:     d.Issuer,
		agents:     d.Agents,
		auditor:    d.Auditor,
		tokenStore: d.TokenStore,
		observer:   d.Observer,
		now:        d.Now,
	}
}

// CreateIdentityRequest describes a new agent.
// Zero values select the defaults.
type CreateIdentityRequest struct {
	Name        string           `json:"name"`
	Permissions core.Permissions `json:"permissions,omitempty"`
	RateLimit   int              `json:"rate_limit,omitempty"`
}

// CreatedIdentity is returned once after creation; the secret is not retrievable later.
type CreatedIdentity struct {
	AgentID     string           `json:"agent_id"`
	Secret      string           `json:"secret"`
	Name        string           `json:"name"`
	Permissions core.Permissions `json:"permissions"`
	RateLimit   int              `json:"rate_limit"`
}

// IdentitySummary is the listing view of an agent.
type IdentitySummary struct {
	AgentID       string           `json:"id"`
	Name          string           `json:"name"`
	Permissions   core.Permissions `json:"permissions"`
	RateLimit     int              `json:"rate_limit"`
	SecretPreview string           `json:"api_key_preview"`
}

func (s *AuthService) begin(ctx context.Context, action string) (*zerolog.Logger, *core.AuditEntry, func()) {
	logger := log.Ctx(ctx)
	entry := &core.AuditEntry{
		ID:     core.CorrelationID(ctx),
		Time:   s.now(),
		Action: action,
	}
	return logger, entry, func() {
		if err := s.auditor.Log(*entry); err != nil {
			logger.Error().Err(err).Str("action", action).Msg("failed to write audit log entry")
		}
	}
}

// Login exchanges admin credentials for a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*core.IssuedToken, error) {
	logger, entry, flush := s.begin(ctx, "auth.login")
	defer flush()
	entry.Actor = username

	if username == "" || !s.verifier.VerifyAdmin(username, password) {
		entry.Error = "invalid credentials"
		logger.Info().Str("username", username).Msg("admin login rejected")
		return nil, httpError(http.StatusUnauthorized, core.ErrInvalidCredentials)
	}

	identity := s.verifier.AdminIdentity(username)
	entry.Subject = identity.ID
	return s.issue(ctx, entry, identity)
}

// ExchangeAgentKey exchanges an agent id and secret for a session token.
func (s *AuthService) ExchangeAgentKey(ctx context.Context, id, secret string) (*core.IssuedToken, error) {
	logger, entry, flush := s.begin(ctx, "auth.token")
	defer flush()
	entry.Actor = id

	if id == "" || secret == "" {
		entry.Error = "missing credentials"
		return nil, httpError(http.StatusUnauthorized, core.ErrMissingCredentials)
	}

	identity, err := s.verifier.VerifyAgent(id, secret)
	if err != nil {
		entry.Error = "invalid credentials"
		logger.Info().Str("agent_id", id).Msg("agent key exchange rejected")
		return nil, httpError(http.StatusUnauthorized, err)
	}
	entry.Subject = identity.ID
	return s.issue(ctx, entry, identity)
}

func (s *AuthService) issue(ctx context.Context, entry *core.AuditEntry, identity *core.Identity) (*core.IssuedToken, error) {
	logger := log.Ctx(ctx)

	issued, err := s.issuer.Issue(identity)
	if err != nil {
		entry.Error = "signing failed"
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("issuing token: %w", err))
	}

	fingerprint := audit.Fingerprint(issued.Value)
	entry.Granted = true
	entry.TokenFingerprint = fingerprint
	entry.Metadata = map[string]any{
		"kind":       string(identity.Kind),
		"expires_at": issued.Claims.ExpiresAt,
	}

	if s.tokenStore != nil {
		meta := core.TokenMetadata{
			CorrelationID: entry.ID,
			Subject:       issued.Claims.Subject,
			DisplayName:   issued.Claims.DisplayName,
			Permissions:   issued.Claims.Permissions,
			Fingerprint:   fingerprint,
			IssuedAt:      issued.Claims.IssuedAt,
			ExpiresAt:     issued.Claims.ExpiresAt,
		}
		if err := s.tokenStore.Save(ctx, meta); err != nil {
			// the token is valid regardless of whether we could record it
			logger.Error().Err(err).Msg("failed to save token metadata")
		}
	}
	if s.observer != nil {
		s.observer.TokenIssued(string(identity.Kind))
	}

	logger.Info().
		Str("sub", identity.ID).
		Str("fingerprint", fingerprint).
		Time("expires_at", issued.Claims.ExpiresAt).
		Msg("token issued")
	return issued, nil
}

func authorize(caller *core.Identity, capability string) error {
	if caller == nil {
		return httpError(http.StatusUnauthorized, core.ErrMissingCredentials)
	}
	if err := permission.Require(caller.Permissions, capability); err != nil {
		return httpError(http.StatusForbidden, err)
	}
	return nil
}

func actor(caller *core.Identity) string {
	if caller == nil {
		return ""
	}
	return caller.ID
}

// CreateIdentity registers a new agent with a freshly generated secret.
func (s *AuthService) CreateIdentity(
	ctx context.Context,
	caller *core.Identity,
	req CreateIdentityRequest,
) (*CreatedIdentity, error) {
	logger, entry, flush := s.begin(ctx, "identity.create")
	defer flush()
	entry.Actor = actor(caller)

	if err := authorize(caller, permission.AdminWrite); err != nil {
		entry.Error = err.Error()
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		entry.Error = "name is required"
		return nil, httpError(http.StatusBadRequest, errors.New("name is required"))
	}
	if req.RateLimit < 0 {
		entry.Error = "negative rate limit"
		return nil, httpError(http.StatusBadRequest, errors.New("rate_limit must be positive"))
	}

	perms := req.Permissions.Normalize()
	if len(perms) == 0 {
		perms = slices.Clone(permission.DefaultAgentPermissions)
	}
	rate := req.RateLimit
	if rate == 0 {
		rate = DefaultAgentRateLimit
	}

	secret, err := credential.GenerateSecret()
	if err != nil {
		entry.Error = "secret generation failed"
		return nil, httpError(http.StatusInternalServerError, err)
	}

	agent := core.Agent{
		ID:          credential.AgentIDFromName(name),
		Secret:      secret,
		Name:        name,
		Permissions: perms,
		RateLimit:   rate,
	}
	entry.Subject = agent.ID

	if err := s.agents.Put(agent); err != nil {
		entry.Error = err.Error()
		if errors.Is(err, core.ErrIdentityExists) {
			return nil, httpError(http.StatusConflict, fmt.Errorf("agent %q: %w", agent.ID, err))
		}
		return nil, httpError(http.StatusInternalServerError, err)
	}

	entry.Granted = true
	entry.Metadata = map[string]any{
		"permissions": []string(perms),
		"rate_limit":  rate,
	}
	logger.Info().Str("agent_id", agent.ID).Str("actor", entry.Actor).Msg("agent created")

	return &CreatedIdentity{
		AgentID:     agent.ID,
		Secret:      secret,
		Name:        name,
		Permissions: perms,
		RateLimit:   rate,
	}, nil
}

// DeleteIdentity removes an agent. Tokens already issued to it stay valid until they expire.
func (s *AuthService) DeleteIdentity(ctx context.Context, caller *core.Identity, id string) error {
	logger, entry, flush := s.begin(ctx, "identity.delete")
	defer flush()
	entry.Actor = actor(caller)
	entry.Subject = id

	if err := authorize(caller, permission.AdminWrite); err != nil {
		entry.Error = err.Error()
		return err
	}

	if !s.agents.Delete(id) {
		entry.Error = "not found"
		return httpError(http.StatusNotFound, fmt.Errorf("agent %q: %w", id, core.ErrIdentityNotFound))
	}

	entry.Granted = true
	logger.Info().Str("agent_id", id).Str("actor", entry.Actor).Msg("agent deleted")
	return nil
}

// ListIdentities returns all agents with their secrets reduced to a preview.
func (s *AuthService) ListIdentities(_ context.Context, caller *core.Identity) ([]IdentitySummary, error) {
	if err := authorize(caller, permission.AdminRead); err != nil {
		return nil, err
	}

	agents := s.agents.List()
	out := make([]IdentitySummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, IdentitySummary{
			AgentID:       a.ID,
			Name:          a.Name,
			Permissions:   a.Permissions,
			RateLimit:     a.RateLimit,
			SecretPreview: credential.SecretPreview(a.Secret),
		})
	}
	return out, nil
}

// ListActiveTokens returns metadata of tokens that have not expired yet.
func (s *AuthService) ListActiveTokens(ctx context.Context, caller *core.Identity) ([]core.TokenMetadata, error) {
	if err := authorize(caller, permission.AdminRead); err != nil {
		return nil, err
	}
	if s.tokenStore == nil {
		return []core.TokenMetadata{}, nil
	}

	tokens, err := s.tokenStore.ListActive(ctx)
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("listing tokens: %w", err))
	}
	return tokens, nil
}

// RecentAudit returns up to limit of the most recent audit entries, oldest first.
// An empty action matches every entry.
func (s *AuthService) RecentAudit(_ context.Context, caller *core.Identity, action string, limit int) ([]core.AuditEntry, error) {
	if err := authorize(caller, permission.AdminRead); err != nil {
		return nil, err
	}

	reader, ok := s.auditor.(core.AuditReader)
	if !ok {
		return nil, httpError(http.StatusNotImplemented, errors.New("configured auditor does not support reading"))
	}

	var (
		entries []core.AuditEntry
		err     error
	)
	if action == "" {
		entries, err = reader.GetRecent(limit)
	} else {
		entries, err = reader.Find(func(e core.AuditEntry) bool { return e.Action == action }, limit)
	}
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("reading audit log: %w", err))
	}
	return entries, nil
}
