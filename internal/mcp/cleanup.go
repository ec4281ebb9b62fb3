package mcp

import (
	"log/slog"
	"net/http"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/editor"
)

// SessionCleanup drops the editors of an MCP session once the client ends
// it with DELETE. Sessions that expire on the server side keep their
// editors until the process restarts.
func SessionCleanup(editors *editor.Registry, resolver auth.TenantResolver, authEnabled bool, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if r.Method != http.MethodDelete {
				return
			}
			sessionID := r.Header.Get("Mcp-Session-Id")
			if sessionID == "" {
				return
			}

			tenantID := auth.DefaultTenant
			if authEnabled {
				token := auth.BearerToken(r.Header.Get("Authorization"))
				if token == "" {
					return
				}
				var err error
				tenantID, err = resolver.ResolveTenant(r.Context(), token)
				if err != nil || tenantID == "" {
					return
				}
			}

			if n := editors.CloseSession(tenantID, sessionID); n > 0 {
				logger.Info("closed session editors", "tenant", tenantID, "session", sessionID, "editors", n)
			}
		})
	}
}
