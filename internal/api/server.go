package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/8b-is/feedgate/internal/api/middleware"
	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/guard"
	"github.com/8b-is/feedgate/internal/permission"
	"github.com/8b-is/feedgate/internal/service"
	"github.com/8b-is/feedgate/internal/tasks"
)

// Gatekeeper is implemented by guard.Guard.
type Gatekeeper interface {
	middleware.Checker
	Quota(ctx context.Context, v guard.Verdict) (core.Quota, error)
}

// TaskRunner is implemented by tasks.Manager.
type TaskRunner interface {
	ListStatus() []tasks.TaskStatus
	Trigger(name string) error
	GetLogs(name string) ([]tasks.LogEntry, error)
}

// Metrics exposes the collected metrics and records finished requests.
type Metrics interface {
	middleware.RequestObserver
	Handler() http.Handler
}

type Options struct {
	// TrustProxyHeaders honors X-Forwarded-For and X-Real-IP for anonymous rate limiting.
	TrustProxyHeaders bool

	// AuthRequests is the per-minute ceiling for the credential exchange routes.
	AuthRequests int
}

type Server struct {
	auth    *service.AuthService
	guard   Gatekeeper
	tasks   TaskRunner
	metrics Metrics
	opts    Options
}

// NewServer wires the HTTP surface. tasks and metrics may be nil.
func NewServer(auth *service.AuthService, g Gatekeeper, taskRunner TaskRunner, m Metrics, opts Options) *Server {
	return &Server{
		auth:    auth,
		guard:   g,
		tasks:   taskRunner,
		metrics: m,
		opts:    opts,
	}
}

func (s *Server) require(capability string) func(http.Handler) http.Handler {
	return middleware.Guard(s.guard, guard.Requirement{Capability: capability}, s.opts.TrustProxyHeaders)
}

func (s *Server) anonymous() func(http.Handler) http.Handler {
	return middleware.Guard(s.guard, guard.Requirement{
		Anonymous: true,
		Limit:     s.opts.AuthRequests,
		Window:    time.Minute,
	}, s.opts.TrustProxyHeaders)
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RecoverMiddleware,
		middleware.CorrelationIDMiddleware,
		middleware.LoggingMiddleware,
	)
	if s.metrics != nil {
		r.Use(middleware.MetricsMiddleware(s.metrics))
		r.Method(http.MethodGet, MetricsRoute, s.metrics.Handler())
	}

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	// public routes
	r.Get(HealthCheckRoute, s.handleHealth)
	r.Get(AboutRoute, s.handleAbout)

	// credential exchange, rate limited by caller address or key hash
	r.With(s.anonymous()).Post(TokenRoute, s.handleToken)
	r.With(s.anonymous()).Post(LoginRoute, s.handleLogin)

	// any authenticated caller
	r.Group(func(r chi.Router) {
		r.Use(s.require(""))
		r.Get(VerifyRoute, s.handleVerify)
		r.Get(QuotaRoute, s.handleQuota)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.require(permission.AdminRead))
		r.Get(AgentsRoute, s.handleListAgents)
		r.Get(TokensRoute, s.handleListTokens)
		r.Get(AuditsRoute, s.handleListAudit)
		r.Get(TasksRoute, s.handleListTasks)
		r.Get(TaskLogRoute, s.handleLogsForTask)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.require(permission.AdminWrite))
		r.Post(AgentsRoute, s.handleCreateAgent)
		r.Delete(AgentRoute, s.handleDeleteAgent)
		r.Post(TriggerRoute, s.handleTriggerTask)
	})

	return r
}
