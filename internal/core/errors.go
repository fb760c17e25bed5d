package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown ids, wrong secrets and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingCredentials is returned when a request carries no credential form at all.
	ErrMissingCredentials = fmt.Errorf("%w: no credentials presented", ErrInvalidCredentials)

	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")

	ErrIdentityExists   = errors.New("identity already exists")
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrLimiterUnavailable means neither the shared store nor the fallback produced a verdict.
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
)

// PermissionDeniedError names the capability the caller was missing.
type PermissionDeniedError struct {
	Capability string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: required %s", e.Capability)
}

// RateLimitedError carries the retry hint for a denied request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %d seconds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	return CeilSeconds(e.RetryAfter, 1)
}

// CeilSeconds rounds d up to whole seconds and clamps the result to at least floor.
func CeilSeconds(d time.Duration, floor int) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < floor {
		return floor
	}
	return secs
}

// ErrorKind is the caller-visible classification of a denial.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindExpiredToken       ErrorKind = "expired_token"
	KindInvalidToken       ErrorKind = "invalid_token"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindRateLimited        ErrorKind = "rate_limited"
	KindInternal           ErrorKind = "internal"
)

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	var permErr *PermissionDeniedError
	var rateErr *RateLimitedError

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrExpiredToken):
		return KindExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.As(err, &permErr):
		return KindPermissionDenied
	case errors.As(err, &rateErr):
		return KindRateLimited
	default:
		return KindInternal
	}
}
