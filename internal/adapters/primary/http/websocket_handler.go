package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	wsAdapter "github.com/lorrc/severino-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/severino-relay/internal/config"
	"github.com/lorrc/severino-relay/internal/core/ports"
	"github.com/lorrc/severino-relay/internal/core/services"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
)

// closeWait bounds the close frame written when registration fails.
const closeWait = time.Second

// WebSocketHandler authenticates and upgrades browser connections on GET /ws.
type WebSocketHandler struct {
	hub           *wsAdapter.Hub
	authenticator ports.Authenticator
	metrics       ports.RelayMetrics
	errorHandler  *ErrorHandler
	upgrader      websocket.Upgrader
	clientCfg     wsAdapter.ClientConfig
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. metrics may be nil.
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	authenticator ports.Authenticator,
	metrics ports.RelayMetrics,
	errorHandler *ErrorHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:           hub,
		authenticator: authenticator,
		metrics:       metrics,
		errorHandler:  errorHandler,
		logger:        logger,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	clientCfg := wsAdapter.DefaultClientConfig()
	clientCfg.SendBufferSize = cfg.WebSocket.SendBufferSize
	clientCfg.PingPeriod = cfg.WebSocket.PingInterval
	clientCfg.PongWait = cfg.WebSocket.PongWait
	handler.clientCfg = clientCfg

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		// In development mode without an allow list, accept any origin
		if len(allowedOrigins) == 0 && cfg.IsDevelopment() {
			h.logger.Warn("allowing websocket connection in development mode",
				"origin", origin,
				"remote_addr", r.RemoteAddr,
			)
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		if originAllowed(parsedOrigin, allowedOrigins) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// originAllowed matches an origin against entries that are either full
// origins ("https://app.example.com"), bare hosts ("app.example.com") or
// wildcard subdomains ("*.example.com").
func originAllowed(origin *url.URL, allowed []string) bool {
	host := origin.Host
	full := origin.Scheme + "://" + origin.Host

	for _, entry := range allowed {
		switch {
		case entry == "*":
			return true
		case strings.HasPrefix(entry, "*."):
			suffix := entry[1:] // keep ".example.com"
			if strings.HasSuffix(host, suffix) || host == entry[2:] {
				return true
			}
		case strings.Contains(entry, "://"):
			if strings.EqualFold(strings.TrimRight(entry, "/"), full) {
				return true
			}
		case strings.EqualFold(entry, host):
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.LoggerFromContext(r.Context(), h.logger)

	// 1. Authenticate with the session verifier before upgrading
	identity, err := h.authenticator.Authenticate(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		reason := services.RejectionReason(err)
		logger.Warn("websocket connection rejected",
			"reason", reason,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		if h.metrics != nil {
			h.metrics.HandshakeRejected(reason)
		}
		h.errorHandler.Handle(w, r, err)
		return
	}

	// 2. Upgrade the connection; the upgrader writes its own error response
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade websocket connection",
			"user_id", identity.UserID,
			"error", err,
		)
		if h.metrics != nil {
			h.metrics.HandshakeRejected("upgrade_failed")
		}
		return
	}

	// 3. Create and register the client
	client := wsAdapter.NewClient(h.hub, conn, *identity, h.clientCfg, h.logger)
	greet := func(rooms []string) []byte { return wsAdapter.ReadyFrame(client, rooms) }
	if err := h.hub.Register(client, greet); err != nil {
		logger.Warn("websocket registration failed", "user_id", identity.UserID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(closeWait))
		_ = conn.Close()
		return
	}

	if h.metrics != nil {
		h.metrics.HandshakeAccepted()
	}

	ctx := logging.WithConnectionID(logging.WithUserID(r.Context(), identity.UserID), client.ID.String())
	logging.LoggerFromContext(ctx, h.logger).Info("websocket connection established",
		"role", identity.Role,
		"remote_addr", r.RemoteAddr,
	)

	// 4. Start the I/O pumps; the ready frame is already queued
	client.Start()
}
