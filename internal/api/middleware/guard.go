package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/api/presenter"
	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/guard"
)

const (
	APIKeyHeader = "X-API-Key"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

type verdictKey struct{}

// VerdictFrom returns the verdict the guard middleware attached to ctx.
func VerdictFrom(ctx context.Context) (guard.Verdict, bool) {
	v, ok := ctx.Value(verdictKey{}).(guard.Verdict)
	return v, ok
}

// Caller returns the authenticated identity behind the request, if any.
func Caller(ctx context.Context) *core.Identity {
	v, ok := VerdictFrom(ctx)
	if !ok {
		return nil
	}
	return v.Identity
}

// Checker is implemented by guard.Guard.
type Checker interface {
	Check(ctx context.Context, creds guard.Credentials, req guard.Requirement) (guard.Verdict, error)
}

// Guard runs every request through the access pipeline before it reaches next.
// Rate limit headers are written whenever the limiter was consulted.
func Guard(checker Checker, req guard.Requirement, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			verdict, err := checker.Check(ctx, CredentialsFrom(r, trustProxy), req)
			if verdict.Quota != nil {
				WriteQuotaHeaders(w.Header(), *verdict.Quota)
			}
			if err != nil {
				presenter.Err(w, r, err)
				return
			}

			if verdict.Identity != nil {
				log.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("sub", verdict.Identity.ID)
				})
			}

			if !verdict.Allowed() {
				var rateErr *core.RateLimitedError
				if errors.As(verdict.Err, &rateErr) {
					w.Header().Set(HeaderRetryAfter, strconv.Itoa(rateErr.RetryAfterSeconds()))
				}
				log.Ctx(ctx).Info().
					Str("state", string(verdict.State)).
					Str("kind", string(verdict.Kind())).
					Msg("request denied")
				presenter.Err(w, r, verdict.Err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, verdictKey{}, verdict)))
		})
	}
}

// CredentialsFrom extracts the credential forms presented on r.
func CredentialsFrom(r *http.Request, trustProxy bool) guard.Credentials {
	creds := guard.Credentials{
		APIKey:     strings.TrimSpace(r.Header.Get(APIKeyHeader)),
		RemoteAddr: ClientIP(r, trustProxy),
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		creds.BearerToken = strings.TrimSpace(token)
	}
	return creds
}

// WriteQuotaHeaders sets the X-RateLimit-* headers; the reset is in whole seconds.
func WriteQuotaHeaders(h http.Header, q core.Quota) {
	h.Set(HeaderRateLimitLimit, strconv.Itoa(q.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(q.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(core.CeilSeconds(q.ResetIn, 0)))
}

// ClientIP returns the caller address. Forwarding headers are only honored
// when the server runs behind a trusted proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
