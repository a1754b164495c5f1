package middleware

import (
	"log/slog"
	"net/http"

	"github.com/lorrc/severino-relay/internal/auth"
	"github.com/lorrc/severino-relay/internal/core/ports"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
)

// InternalSecretHeader carries the shared secret on ingress requests.
const InternalSecretHeader = "X-Internal-Secret"

// InternalSecret rejects requests whose X-Internal-Secret header does not
// match secret. Missing and wrong secrets get the same 401 body. metrics may
// be nil.
func InternalSecret(secret *auth.SharedSecret, metrics ports.RelayMetrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secret.Matches(r.Header.Get(InternalSecretHeader)) {
				logging.LoggerFromContext(r.Context(), logger).Warn("ingress request rejected: bad internal secret",
					"remote_addr", r.RemoteAddr,
					"secret_present", r.Header.Get(InternalSecretHeader) != "",
				)
				if metrics != nil {
					metrics.IngressRejected("unauthorized")
				}
				writeError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
