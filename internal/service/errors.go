package service

import (
	"errors"
	"net/http"

	"github.com/8b-is/feedgate/internal/core"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// StatusFor maps an error to the HTTP status the caller should see.
func StatusFor(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	switch core.KindOf(err) {
	case core.KindNone:
		return http.StatusOK
	case core.KindInvalidCredentials, core.KindExpiredToken, core.KindInvalidToken:
		return http.StatusUnauthorized
	case core.KindPermissionDenied:
		return http.StatusForbidden
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	}

	switch {
	case errors.Is(err, core.ErrIdentityExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrIdentityNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to the caller for err.
// Internal errors are not described.
func PublicMessage(err error) string {
	var permErr *core.PermissionDeniedError
	var rateErr *core.RateLimitedError
	var httpErr *HTTPError

	switch {
	case errors.As(err, &permErr):
		return permErr.Error()
	case errors.As(err, &rateErr):
		return rateErr.Error()
	}

	switch core.KindOf(err) {
	case core.KindInvalidCredentials:
		return core.ErrInvalidCredentials.Error()
	case core.KindExpiredToken:
		return core.ErrExpiredToken.Error()
	case core.KindInvalidToken:
		return core.ErrInvalidToken.Error()
	}

	if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
		return httpErr.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}
