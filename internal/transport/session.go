package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/domain/record"
)

// SessionHeader names the caller's editing session in REST requests. It only
// tags activity entries; conflict state is held by the caller.
const SessionHeader = "X-Session-Id"

// MaxSessionIDLen bounds the session IDs stored with activity entries.
const MaxSessionIDLen = 128

type sessionKey struct{}

// SessionIDFromContext returns the session ID from context, if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionKey{}).(string)
	return sessionID, ok
}

func session(r *http.Request) string {
	sessionID, _ := SessionIDFromContext(r.Context())
	return sessionID
}

// SessionMiddleware stores the session header in the request context and
// rejects IDs that are too long to log.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(sessionID) > MaxSessionIDLen {
			err := fmt.Errorf("%w: %s longer than %d bytes", record.ErrInvalidInput, SessionHeader, MaxSessionIDLen)
			writeError(w, apierror.Map(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sessionID)))
	})
}
