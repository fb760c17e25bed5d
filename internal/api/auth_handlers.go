package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/8b-is/feedgate/internal/api/middleware"
	"github.com/8b-is/feedgate/internal/api/presenter"
	"github.com/8b-is/feedgate/internal/core"
)

type TokenRequest struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func newTokenResponse(t *core.IssuedToken) TokenResponse {
	return TokenResponse{
		AccessToken: t.Value,
		TokenType:   "bearer",
		ExpiresIn:   int(t.ExpiresIn().Seconds()),
	}
}

// handleToken exchanges an agent id and secret for a session token.
// The credentials come from the JSON body or, if the body is empty, from X-API-Key.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var payload TokenRequest
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		s.badPayload(w, r, err)
		return
	}
	if payload.AgentID == "" && payload.APIKey == "" {
		payload.AgentID, payload.APIKey, _ = strings.Cut(r.Header.Get(middleware.APIKeyHeader), ":")
	}

	issued, err := s.auth.ExchangeAgentKey(r.Context(), payload.AgentID, payload.APIKey)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, newTokenResponse(issued), http.StatusOK)
}

// handleLogin exchanges admin credentials for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload LoginRequest
	if err := DecodePayload(r, &payload, false); err != nil {
		s.badPayload(w, r, err)
		return
	}

	issued, err := s.auth.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, newTokenResponse(issued), http.StatusOK)
}

type VerifyResponse struct {
	Valid       bool             `json:"valid"`
	Subject     string           `json:"subject"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Permissions core.Permissions `json:"permissions"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

// handleVerify describes the authenticated caller.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	verdict, _ := middleware.VerdictFrom(r.Context())

	resp := VerifyResponse{
		Valid:       true,
		Subject:     verdict.Identity.ID,
		Name:        verdict.Identity.DisplayName,
		Kind:        string(verdict.Identity.Kind),
		Permissions: verdict.Identity.Permissions,
	}
	if verdict.Claims != nil {
		exp := verdict.Claims.ExpiresAt
		resp.ExpiresAt = &exp
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}

type QuotaResponse struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
	ResetIn   int `json:"reset_in"`
}

// handleQuota reports the caller's quota after this request was counted.
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	verdict, _ := middleware.VerdictFrom(r.Context())

	quota, err := s.guard.Quota(r.Context(), verdict)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, QuotaResponse{
		Limit:     quota.Limit,
		Remaining: quota.Remaining,
		ResetIn:   core.CeilSeconds(quota.ResetIn, 0),
	}, http.StatusOK)
}
