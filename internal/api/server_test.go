package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/8b-is/feedgate/internal/api/presenter"
	"github.com/8b-is/feedgate/internal/audit"
	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/credential"
	"github.com/8b-is/feedgate/internal/guard"
	"github.com/8b-is/feedgate/internal/logging"
	"github.com/8b-is/feedgate/internal/metrics"
	"github.com/8b-is/feedgate/internal/ratelimit"
	"github.com/8b-is/feedgate/internal/service"
	"github.com/8b-is/feedgate/internal/store"
	"github.com/8b-is/feedgate/internal/tasks"
	"github.com/8b-is/feedgate/internal/token"
)

const (
	testAgentID     = "agent_claude_001"
	testAgentSecret = "sk_test_claude_secret"
	testAgentKey    = testAgentID + ":" + testAgentSecret
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testServer struct {
	handler http.Handler
	agents  *credential.Store
	tasks   *tasks.Manager
}

type brokenLimiter struct{}

func (brokenLimiter) Name() string { return "broken" }

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, core.ErrLimiterUnavailable
}

func (brokenLimiter) Remaining(context.Context, string, int, time.Duration) (core.Quota, error) {
	return core.Quota{}, core.ErrLimiterUnavailable
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()

	agents := credential.NewStore(core.Agent{
		ID:          testAgentID,
		Secret:      testAgentSecret,
		Name:        "Claude",
		Permissions: core.Permissions{"feedback.submit"},
		RateLimit:   3,
	})
	verifier := credential.NewVerifier(agents, credential.VerifierConfig{
		Admins:           []core.Admin{{Username: "root", PasswordHash: credential.HashPassword("hunter2")}},
		AdminRateLimit:   1000,
		DefaultRateLimit: 60,
	})
	tokens, err := token.NewService(testKey)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	if limiter == nil {
		limiter = ratelimit.NewFixedWindow()
	}
	m := metrics.New()
	g := guard.New(tokens, verifier, limiter, guard.Config{
		DefaultLimit:  60,
		DefaultWindow: time.Minute,
		Observer:      m,
	})

	auth := service.NewAuthService(service.Deps{
		Verifier:   verifier,
		Issuer:     tokens,
		Agents:     agents,
		Auditor:    audit.NewInMemoryAuditor(100),
		TokenStore: store.NewInMemoryTokenStore(),
		Observer:   m,
	})

	manager := tasks.NewManager()
	manager.Register("noop", 0, func(_ context.Context, logger logging.Leveled) error {
		logger.Info("nothing to do")
		return nil
	})

	srv := NewServer(auth, g, manager, m, Options{AuthRequests: 5})
	return &testServer{handler: srv.Routes(), agents: agents, tasks: manager}
}

type call struct {
	method  string
	path    string
	body    string
	headers map[string]string
	remote  string
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.remote != "" {
		req.RemoteAddr = c.remote
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, call{method: http.MethodPost, path: LoginRoute, body: `{"username":"root","password":"hunter2"}`})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login failed: %d %s", rec.Code, rec.Body.String())
	}
	return decode[TokenResponse](t, rec).AccessToken
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: HealthCheckRoute})
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, call{method: http.MethodGet, path: AboutRoute})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"service":"feedgate"`) {
		t.Errorf("about = %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, call{method: http.MethodGet, path: "/nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestTokenExchange(t *testing.T) {
	tests := []struct {
		name string
		c    call
	}{
		{
			name: "json body",
			c:    call{body: `{"agent_id":"` + testAgentID + `","api_key":"` + testAgentSecret + `"}`},
		},
		{
			name: "api key header",
			c:    call{headers: map[string]string{"X-API-Key": testAgentKey}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			tt.c.method, tt.c.path = http.MethodPost, TokenRoute

			rec := ts.do(t, tt.c)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			resp := decode[TokenResponse](t, rec)
			if resp.TokenType != "bearer" || resp.ExpiresIn != 86400 || resp.AccessToken == "" {
				t.Errorf("unexpected token response %+v", resp)
			}
			if rec.Header().Get("X-RateLimit-Limit") != "5" {
				t.Errorf("X-RateLimit-Limit = %q, want 5", rec.Header().Get("X-RateLimit-Limit"))
			}

			rec = ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: bearer(resp.AccessToken)})
			if rec.Code != http.StatusOK {
				t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
			}
			verified := decode[VerifyResponse](t, rec)
			if !verified.Valid || verified.Subject != testAgentID || verified.Name != "Claude" || verified.ExpiresAt == nil {
				t.Errorf("unexpected verify response %+v", verified)
			}
		})
	}
}

func TestDenials(t *testing.T) {
	expiredIssuer, err := token.NewService(testKey, token.WithClock(func() time.Time {
		return time.Now().Add(-48 * time.Hour)
	}))
	if err != nil {
		t.Fatal(err)
	}
	expired, err := expiredIssuer.Issue(&core.Identity{ID: testAgentID, Permissions: core.Permissions{"*"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		c          call
		wantStatus int
		wantError  string
	}{
		{
			name:       "no credentials",
			c:          call{method: http.MethodGet, path: VerifyRoute},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "garbage token",
			c:          call{method: http.MethodGet, path: VerifyRoute, headers: bearer("not.a.token")},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid token",
		},
		{
			name:       "expired token",
			c:          call{method: http.MethodGet, path: VerifyRoute, headers: bearer(expired.Value)},
			wantStatus: http.StatusUnauthorized,
			wantError:  "token has expired",
		},
		{
			name:       "malformed api key",
			c:          call{method: http.MethodGet, path: VerifyRoute, headers: map[string]string{"X-API-Key": "no-colon"}},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "wrong agent secret",
			c:          call{method: http.MethodPost, path: TokenRoute, body: `{"agent_id":"` + testAgentID + `","api_key":"sk_wrong"}`},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "wrong admin password",
			c:          call{method: http.MethodPost, path: LoginRoute, body: `{"username":"root","password":"nope"}`},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
		},
		{
			name:       "agent on admin route",
			c:          call{method: http.MethodGet, path: AgentsRoute, headers: map[string]string{"X-API-Key": testAgentKey}},
			wantStatus: http.StatusForbidden,
			wantError:  "permission denied: required admin.read",
		},
		{
			name:       "unknown fields",
			c:          call{method: http.MethodPost, path: LoginRoute, body: `{"username":"root","password":"hunter2","role":"x"}`},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := ts.do(t, tt.c)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decode[presenter.ErrorResponse](t, rec)
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
			if resp.CorrelationID == "" || resp.CorrelationID != rec.Header().Get("X-Correlation-ID") {
				t.Errorf("correlation id %q does not match header %q", resp.CorrelationID, rec.Header().Get("X-Correlation-ID"))
			}
		})
	}
}

func TestAgentRateLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	key := map[string]string{"X-API-Key": testAgentKey}

	for i, wantRemaining := range []string{"2", "1", "0"} {
		rec := ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: key})
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request %d: remaining = %q, want %q", i+1, got, wantRemaining)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("request %d: limit = %q, want 3", i+1, got)
		}
	}

	rec := ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: key})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("4th request: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("unexpected headers %v", rec.Header())
	}
	if msg := decode[presenter.ErrorResponse](t, rec).Error; !strings.HasPrefix(msg, "rate limit exceeded, try again in ") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestAuthRoutesRateLimitedByAddress(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"username":"root","password":"wrong"}`

	for range 5 {
		rec := ts.do(t, call{method: http.MethodPost, path: LoginRoute, body: body, remote: "192.0.2.10:5000"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	}

	rec := ts.do(t, call{method: http.MethodPost, path: LoginRoute, body: body, remote: "192.0.2.10:5001"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// another address has its own bucket
	rec = ts.do(t, call{method: http.MethodPost, path: LoginRoute, body: `{"username":"root","password":"hunter2"}`, remote: "192.0.2.11:5000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRoutesRotatingKeys(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := range 5 {
		key := map[string]string{"X-API-Key": fmt.Sprintf("agent_%d:guess", i)}
		rec := ts.do(t, call{method: http.MethodPost, path: TokenRoute, headers: key, remote: "192.0.2.20:4000"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, rec.Code)
		}
	}

	rec := ts.do(t, call{method: http.MethodPost, path: TokenRoute, headers: map[string]string{"X-API-Key": testAgentKey}, remote: "192.0.2.20:4001"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 once the address is drained", rec.Code)
	}
}

func TestQuotaRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	key := map[string]string{"X-API-Key": testAgentKey}

	ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: key})
	rec := ts.do(t, call{method: http.MethodGet, path: QuotaRoute, headers: key})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// both requests were counted, and reading the quota does not count again
	got := decode[QuotaResponse](t, rec)
	if got.Limit != 3 || got.Remaining != 1 || got.ResetIn <= 0 || got.ResetIn > 60 {
		t.Errorf("unexpected quota %+v", got)
	}
}

func TestAdminAgentLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := bearer(ts.adminToken(t))

	rec := ts.do(t, call{method: http.MethodPost, path: AgentsRoute, headers: admin, body: `{"name":"Build Bot"}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[service.CreatedIdentity](t, rec)
	if created.AgentID != "agent_build_bot" || !strings.HasPrefix(created.Secret, "sk_") {
		t.Errorf("unexpected created identity %+v", created)
	}

	rec = ts.do(t, call{method: http.MethodPost, path: AgentsRoute, headers: admin, body: `{"name":"Build Bot"}`})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = ts.do(t, call{method: http.MethodGet, path: AgentsRoute, headers: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var ids []string
	for _, a := range decode[[]service.IdentitySummary](t, rec) {
		ids = append(ids, a.AgentID)
		if a.SecretPreview != created.Secret[:10] && a.AgentID == created.AgentID {
			t.Errorf("unexpected preview %q", a.SecretPreview)
		}
	}
	if diff := cmp.Diff([]string{"agent_build_bot", testAgentID}, ids); diff != "" {
		t.Errorf("agent ids mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(rec.Body.String(), created.Secret) {
		t.Error("listing leaked the full secret")
	}

	// the new agent can authenticate right away
	rec = ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: map[string]string{"X-API-Key": created.AgentID + ":" + created.Secret}})
	if rec.Code != http.StatusOK {
		t.Errorf("new agent verify status = %d", rec.Code)
	}

	rec = ts.do(t, call{method: http.MethodDelete, path: AgentsRoute + "/" + created.AgentID, headers: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.do(t, call{method: http.MethodDelete, path: AgentsRoute + "/" + created.AgentID, headers: admin})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = ts.do(t, call{method: http.MethodGet, path: TokensRoute, headers: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("tokens status = %d", rec.Code)
	}
	if tokens := decode[[]core.TokenMetadata](t, rec); len(tokens) != 1 || tokens[0].Subject != "admin_root" {
		t.Errorf("unexpected active tokens %+v", tokens)
	}

	rec = ts.do(t, call{method: http.MethodGet, path: AuditsRoute + "?action=identity.create", headers: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	entries := decode[[]core.AuditEntry](t, rec)
	if len(entries) != 2 || !entries[0].Granted || entries[1].Granted {
		t.Errorf("unexpected audit entries %+v", entries)
	}

	rec = ts.do(t, call{method: http.MethodGet, path: AuditsRoute + "?limit=abc", headers: admin})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", rec.Code)
	}
}

func TestTaskRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := bearer(ts.adminToken(t))

	rec := ts.do(t, call{method: http.MethodGet, path: TasksRoute, headers: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if list := decode[[]tasks.TaskStatus](t, rec); len(list) != 1 || list[0].Name != "noop" {
		t.Errorf("unexpected tasks %+v", list)
	}

	if err := ts.tasks.RunNow(context.Background(), "noop"); err != nil {
		t.Fatal(err)
	}
	rec = ts.do(t, call{method: http.MethodGet, path: TasksRoute + "/noop/logs", headers: admin})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nothing to do") {
		t.Errorf("logs = %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, call{method: http.MethodPost, path: TasksRoute + "/noop/trigger", headers: admin})
	if rec.Code != http.StatusAccepted {
		t.Errorf("trigger status = %d", rec.Code)
	}

	rec = ts.do(t, call{method: http.MethodPost, path: TasksRoute + "/missing/trigger", headers: admin})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", rec.Code)
	}
}

func TestLimiterUnavailable(t *testing.T) {
	ts := newTestServer(t, brokenLimiter{})

	rec := ts.do(t, call{method: http.MethodGet, path: VerifyRoute, headers: map[string]string{"X-API-Key": testAgentKey}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("quota headers written without a verdict")
	}
	if msg := decode[presenter.ErrorResponse](t, rec).Error; strings.Contains(msg, "limiter") {
		t.Errorf("internal detail leaked: %q", msg)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.adminToken(t)
	ts.do(t, call{method: http.MethodGet, path: VerifyRoute})

	rec := ts.do(t, call{method: http.MethodGet, path: MetricsRoute})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`feedgate_tokens_issued_total{kind="admin"} 1`,
		`feedgate_guard_verdicts_total{kind="invalid_credentials",state="AuthFailed"} 1`,
		`feedgate_http_requests_total{method="POST",route="/v1/admin/login",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output is missing %q", want)
		}
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		allowEmpty  bool
		wantErr     bool
	}{
		{"valid", "application/json", `{"username":"a"}`, false, false},
		{"charset", "application/json; charset=utf-8", `{"username":"a"}`, false, false},
		{"empty allowed", "", "", true, false},
		{"empty rejected", "application/json", "", false, true},
		{"unknown field", "application/json", `{"nope":1}`, false, true},
		{"trailing data", "application/json", `{"username":"a"}{"username":"b"}`, false, true},
		{"form", "application/x-www-form-urlencoded", "username=a", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			var dest LoginRequest
			err := DecodePayload(req, &dest, tt.allowEmpty)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
