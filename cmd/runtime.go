package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/audit"
	"github.com/8b-is/feedgate/internal/config"
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

// Background task names.
const (
	TaskRateLimitJanitor = "ratelimit-janitor"
	TaskTokensPrune      = "tokens-prune"
	TaskRateLimitRecheck = "ratelimit-recheck"
)

// runtime is a fully wired server that has not started listening yet.
type runtime struct {
	Handler http.Handler
	Tasks   *tasks.Manager

	closers []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	key := []byte(cfg.Auth.SigningKey)
	if len(key) == 0 {
		generated, err := token.GenerateKey()
		if err != nil {
			return nil, err
		}
		key = generated
		log.Warn().Msg("no signing key configured, generated a random one; sessions will not survive a restart")
	}

	generatedFor, err := cfg.GenerateMissingSecrets()
	if err != nil {
		return nil, err
	}
	if len(generatedFor) > 0 {
		log.Warn().Strs("agents", generatedFor).
			Msg("agents without a secret got a random one; use the admin API to create agents with known secrets")
	}

	agents := credential.NewStore(cfg.Agents...)
	verifier := credential.NewVerifier(agents, credential.VerifierConfig{
		Admins:           cfg.Admins,
		AdminRateLimit:   cfg.Auth.AdminRateLimit,
		DefaultRateLimit: cfg.RateLimit.DefaultRequests,
	})

	tokens, err := token.NewService(key, token.WithLifetime(cfg.Auth.TokenLifetime))
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	m := metrics.New()

	sel, err := ratelimit.Select(ctx, cfg.RateLimit.Store, ratelimit.WithObserver(m))
	if err != nil {
		return nil, fmt.Errorf("selecting rate limit store: %w", err)
	}
	rt.closers = append(rt.closers, sel.Close)

	auditor, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, auditor.Close)

	tokenStore := store.NewInMemoryTokenStore()

	g := guard.New(tokens, verifier, sel.Limiter, guard.Config{
		DefaultLimit:  cfg.RateLimit.DefaultRequests,
		DefaultWindow: cfg.RateLimit.DefaultWindow,
		Observer:      m,
	})

	auth := service.NewAuthService(service.Deps{
		Verifier:   verifier,
		Issuer:     tokens,
		Agents:     agents,
		Auditor:    auditor,
		TokenStore: tokenStore,
		Observer:   m,
	})

	rt.Tasks = tasks.NewManager()
	registerTasks(rt.Tasks, cfg.RateLimit, sel, tokenStore)

	srv := api.NewServer(auth, g, rt.Tasks, m, api.Options{
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		AuthRequests:      cfg.RateLimit.AuthRequests,
	})
	rt.Handler = srv.Routes()

	ok = true
	return rt, nil
}

func registerTasks(m *tasks.Manager, cfg config.RateLimitConfig, sel *ratelimit.Selection, tokenStore *store.InMemoryTokenStore) {
	m.Register(TaskRateLimitJanitor, cfg.JanitorInterval, func(_ context.Context, logger logging.Leveled) error {
		pruned := sel.Local.Prune()
		logger.Info("pruned %d expired windows, %d remain", pruned, sel.Local.Len())
		return nil
	})

	m.Register(TaskTokensPrune, cfg.JanitorInterval, func(ctx context.Context, logger logging.Leveled) error {
		deleted, err := tokenStore.DeleteExpired(ctx)
		if err != nil {
			return fmt.Errorf("deleting expired tokens: %w", err)
		}
		logger.Info("removed %d expired token records", deleted)
		return nil
	})

	if sel.Failover != nil && sel.RecheckInterval > 0 {
		failover := sel.Failover
		m.Register(TaskRateLimitRecheck, sel.RecheckInterval, func(ctx context.Context, logger logging.Leveled) error {
			if !failover.Degraded() {
				logger.Debug("store healthy, nothing to do")
				return nil
			}
			if !failover.Recheck(ctx) {
				return fmt.Errorf("store %s still unreachable", failover.Name())
			}
			logger.Info("store recovered")
			return nil
		})
	}
}
