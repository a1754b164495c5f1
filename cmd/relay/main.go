package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	httpAdapter "github.com/lorrc/severino-relay/internal/adapters/primary/http"
	mw "github.com/lorrc/severino-relay/internal/adapters/primary/http/middleware"
	"github.com/lorrc/severino-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/severino-relay/internal/adapters/secondary/session"
	"github.com/lorrc/severino-relay/internal/auth"
	"github.com/lorrc/severino-relay/internal/config"
	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/ports"
	"github.com/lorrc/severino-relay/internal/core/services"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
	"github.com/lorrc/severino-relay/internal/infrastructure/metrics"
)

func main() {
	var envFile string
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// 1. Load Configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting relay",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Session Verification
	var verifier ports.SessionVerifier
	var verifierHealth httpAdapter.HealthChecker
	switch cfg.Session.Verifier {
	case config.VerifierToken:
		verifier = auth.NewTokenManager(cfg.Session.TokenSecret, cfg.Session.CookieName, 0)
		logger.Info("verifying sessions locally", "cookie", cfg.Session.CookieName)
	default:
		httpVerifier := session.NewHTTPVerifier(cfg.SessionVerifyURL(), cfg.Session.VerifyTimeout, logger)
		verifier = httpVerifier
		verifierHealth = httpVerifier
		logger.Info("verifying sessions remotely", "url", cfg.SessionVerifyURL())
	}

	// 4. Internal Secret, rotated from file when configured
	secret := auth.NewSharedSecret(cfg.Ingress.Secret)
	if cfg.Ingress.SecretFile != "" {
		go func() {
			err := config.WatchSecretFile(ctx, cfg.Ingress.SecretFile, cfg.Ingress.Secret, logger, secret.Set)
			if err != nil {
				logger.Error("secret file watcher stopped", "path", cfg.Ingress.SecretFile, "error", err)
			}
		}()
	}

	// 5. Real-time Components
	hub := websocket.NewHub(domain.NewRoomPolicy(cfg.Rooms.PrivilegedRoles), logger)
	collector := metrics.NewCollector(hub)

	var handshakeLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		handshakeLimiter = mw.NewRateLimiter(ctx,
			mw.HandshakeRateLimiterConfig(cfg.RateLimit.HandshakeRPS, cfg.RateLimit.HandshakeBurst))
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	authService := services.NewAuthService(verifier, cfg.Session.VerifyTimeout)
	relayService := services.NewRelayService(hub, collector, logger)

	handlers := httpAdapter.Handlers{
		Ingress:   httpAdapter.NewIngressHandler(relayService, collector, errorHandler, cfg.Ingress.MaxBodyBytes, logger),
		WebSocket: httpAdapter.NewWebSocketHandler(hub, authService, collector, errorHandler, cfg, logger),
		Health:    httpAdapter.NewHealthHandler(verifierHealth, hub, cfg.App.Version),
		Metrics:   collector.Handler(),
	}

	// 7. Setup Router
	router := httpAdapter.NewRouter(handlers, httpAdapter.RouterOptions{
		Secret:           secret,
		Metrics:          collector,
		HandshakeLimiter: handshakeLimiter,
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		ErrorHandler:     errorHandler,
		Logger:           logger,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections; closing the hub sends
	// each of them a close frame.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	hub.Close()
	stop()

	logger.Info("server shutdown complete")
}
