package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lorrc/severino-relay/internal/core/domain"
)

// Session verifier modes
const (
	VerifierRemote = "remote"
	VerifierToken  = "token"
)

// Config holds all relay configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Event ingress configuration
	Ingress IngressConfig

	// Session verification configuration
	Session SessionConfig

	// Room membership configuration
	Rooms RoomsConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// Emit client configuration
	Emit EmitConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// IngressConfig holds the internal emit endpoint configuration
type IngressConfig struct {
	Secret       string
	SecretFile   string // when set, Secret is read from it and the file is watched
	MaxBodyBytes int64
}

// SessionConfig holds the handshake verification configuration
type SessionConfig struct {
	Verifier      string // remote, token
	AppBaseURL    string
	VerifyPath    string
	VerifyTimeout time.Duration
	CookieName    string
	TokenSecret   string
}

// RoomsConfig holds room policy configuration
type RoomsConfig struct {
	PrivilegedRoles []domain.Role
}

// RateLimitConfig holds handshake rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool
	HandshakeRPS   float64
	HandshakeBurst int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	PingInterval    time.Duration
	PongWait        time.Duration
}

// EmitConfig holds configuration for the emit client
type EmitConfig struct {
	RelayURL string
	Secret   string
	Timeout  time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// loadEnvFile reads envFile, or ".env" when envFile is empty. Only an
// explicitly named file is required to exist.
func loadEnvFile(envFile string) error {
	files := []string{}
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := godotenv.Load(files...); err != nil {
		if envFile != "" {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		log.Println("No .env file found, using system environment variables")
	}
	return nil
}

// Load loads configuration from environment variables. envFile, when not
// empty, names the dotenv file to read; otherwise ".env" is tried.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":4001"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Ingress: IngressConfig{
			Secret:       os.Getenv("INTERNAL_SECRET"),
			SecretFile:   os.Getenv("INTERNAL_SECRET_FILE"),
			MaxBodyBytes: int64(getIntOrDefault("INGRESS_MAX_BODY_BYTES", 64*1024)),
		},
		Session: SessionConfig{
			Verifier:      getEnvOrDefault("SESSION_VERIFIER", VerifierRemote),
			AppBaseURL:    strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
			VerifyPath:    getEnvOrDefault("SESSION_VERIFY_PATH", "/api/socket/session"),
			VerifyTimeout: getDurationOrDefault("SESSION_VERIFY_TIMEOUT", 5*time.Second),
			CookieName:    getEnvOrDefault("SESSION_COOKIE_NAME", "severino_session"),
			TokenSecret:   os.Getenv("SESSION_TOKEN_SECRET"),
		},
		Rooms: RoomsConfig{
			PrivilegedRoles: getRolesOrDefault("PRIVILEGED_ROLES", domain.DefaultPrivilegedRoles),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			HandshakeRPS:   getFloatOrDefault("RATE_LIMIT_HANDSHAKE_RPS", 2),
			HandshakeBurst: getIntOrDefault("RATE_LIMIT_HANDSHAKE_BURST", 10),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
			SendBufferSize:  getIntOrDefault("WS_SEND_BUFFER", 64),
			PingInterval:    getDurationOrDefault("WS_PING_INTERVAL", 54*time.Second),
			PongWait:        getDurationOrDefault("WS_PONG_WAIT", 60*time.Second),
		},
		Emit: EmitConfig{
			RelayURL: strings.TrimRight(getEnvOrDefault("EMIT_RELAY_URL", "http://localhost:4001"), "/"),
			Timeout:  getDurationOrDefault("EMIT_TIMEOUT", time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "severino-relay"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}

	if cfg.Ingress.SecretFile != "" {
		secret, err := ReadSecretFile(cfg.Ingress.SecretFile)
		if err != nil {
			return nil, err
		}
		cfg.Ingress.Secret = secret
	}
	cfg.Emit.Secret = cfg.Ingress.Secret

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEmit loads only what the emit client needs. Relay-side settings are
// neither read nor validated.
func LoadEmit(envFile string) (EmitConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return EmitConfig{}, err
	}

	cfg := EmitConfig{
		RelayURL: strings.TrimRight(getEnvOrDefault("EMIT_RELAY_URL", "http://localhost:4001"), "/"),
		Secret:   os.Getenv("INTERNAL_SECRET"),
		Timeout:  getDurationOrDefault("EMIT_TIMEOUT", time.Second),
	}
	if path := os.Getenv("INTERNAL_SECRET_FILE"); path != "" {
		secret, err := ReadSecretFile(path)
		if err != nil {
			return EmitConfig{}, err
		}
		cfg.Secret = secret
	}
	if cfg.Secret == "" {
		return EmitConfig{}, errors.New("INTERNAL_SECRET or INTERNAL_SECRET_FILE is required")
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.Ingress.Secret == "" {
		errs = append(errs, "INTERNAL_SECRET or INTERNAL_SECRET_FILE is required")
	}

	switch c.Session.Verifier {
	case VerifierRemote:
		if c.Session.AppBaseURL == "" {
			errs = append(errs, "APP_BASE_URL is required for the remote session verifier")
		} else if u, err := url.Parse(c.Session.AppBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "APP_BASE_URL must be an absolute URL")
		}
	case VerifierToken:
		if c.Session.TokenSecret == "" {
			errs = append(errs, "SESSION_TOKEN_SECRET is required for the token session verifier")
		}
	default:
		errs = append(errs, "SESSION_VERIFIER must be one of: remote, token")
	}

	// Security validations
	if c.App.Environment == "production" {
		if len(c.Ingress.Secret) < 32 {
			errs = append(errs, "INTERNAL_SECRET must be at least 32 characters in production")
		}

		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}
	}

	// Logical validations
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		errs = append(errs, "WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}

	if c.WebSocket.SendBufferSize <= 0 {
		errs = append(errs, "WS_SEND_BUFFER must be positive")
	}

	if c.Ingress.MaxBodyBytes <= 0 {
		errs = append(errs, "INGRESS_MAX_BODY_BYTES must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// SessionVerifyURL is the absolute URL of the main application's session check.
func (c *Config) SessionVerifyURL() string {
	return c.Session.AppBaseURL + c.Session.VerifyPath
}

// ReadSecretFile reads a secret from path, trimming surrounding whitespace.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getRolesOrDefault(key string, defaultValue []domain.Role) []domain.Role {
	if value := os.Getenv(key); value != "" {
		if roles := domain.ParseRoles(value); len(roles) > 0 {
			return roles
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Secret: [REDACTED], Verifier: %s, App: %s, PrivilegedRoles: %v, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.Session.Verifier,
		redactURL(c.Session.AppBaseURL),
		c.Rooms.PrivilegedRoles,
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL strips credentials from a URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		u.User = url.User("REDACTED")
	}
	return u.String()
}
