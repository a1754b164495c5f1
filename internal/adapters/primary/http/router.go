package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/severino-relay/internal/adapters/primary/http/middleware"
	"github.com/lorrc/severino-relay/internal/auth"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// Handlers groups the relay endpoints mounted by NewRouter.
type Handlers struct {
	Ingress   *IngressHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
	Metrics   http.Handler
}

// RouterOptions configures the middleware around the handlers.
type RouterOptions struct {
	Secret           *auth.SharedSecret
	Metrics          ports.RelayMetrics
	HandshakeLimiter *mw.RateLimiter // nil disables handshake rate limiting
	AllowedOrigins   []string
	ErrorHandler     *ErrorHandler // defaults to one writing to Logger
	Logger           *slog.Logger
}

// NewRouter builds the relay's HTTP surface.
func NewRouter(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = NewErrorHandler(opts.Logger)
	}

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(opts.Logger))
	r.Use(mw.RecoveryLogger(opts.Logger))

	// Health check endpoints
	if h.Health != nil {
		r.Get("/health", h.Health.HandleHealth)
		r.Get("/health/live", h.Health.HandleLiveness)
		r.Get("/health/ready", h.Health.HandleReadiness)
	}

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// Internal ingress from the main application
	r.Group(func(r chi.Router) {
		r.Use(mw.InternalSecret(opts.Secret, opts.Metrics, opts.Logger))
		r.Method(http.MethodPost, "/emit", h.Ingress)
	})

	// Browser-facing websocket handshake
	r.Group(func(r chi.Router) {
		if len(opts.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   opts.AllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Cookie", "Sec-WebSocket-Protocol"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		if opts.HandshakeLimiter != nil {
			r.Use(opts.HandshakeLimiter.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
				if opts.Metrics != nil {
					opts.Metrics.HandshakeRejected("rate_limited")
				}
				errorHandler.Handle(w, r, err)
			}))
		}
		r.Method(http.MethodGet, "/ws", h.WebSocket)
	})

	return r
}
