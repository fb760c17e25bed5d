package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/8b-is/feedgate/internal/core"
)

const CorrelationIDHeader = "X-Correlation-ID"

// maxCorrelationIDLen caps ids taken from the request.
const maxCorrelationIDLen = 64

// CorrelationIDMiddleware tags the request with a correlation id. A caller-supplied id is reused only if it is short and
// made of [A-Za-z0-9._-]; anything else is replaced.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = xid.New().String()
		}
		w.Header().Set(CorrelationIDHeader, id)

		next.ServeHTTP(w, r.WithContext(core.WithCorrelationID(r.Context(), id)))
	})
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
