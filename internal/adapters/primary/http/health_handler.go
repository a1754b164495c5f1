package http

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// HealthChecker defines the interface for health check dependencies
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RegistryStats exposes connection registry gauges for the health report.
type RegistryStats interface {
	ClientCount() int
	RoomCount() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	verifier  HealthChecker
	registry  RegistryStats
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. verifier is nil when
// sessions are verified locally.
func NewHealthHandler(verifier HealthChecker, registry RegistryStats, version string) *HealthHandler {
	return &HealthHandler{
		verifier:  verifier,
		registry:  registry,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HandleLiveness handles liveness probe requests (is the service running?)
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles readiness probe requests (can the service accept
// handshakes?). An unreachable session verifier makes the relay unready, but
// it keeps serving.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]Check{
		"session_verifier": h.checkVerifier(ctx),
	}
	overallStatus := "healthy"
	if checks["session_verifier"].Status != "healthy" {
		overallStatus = "unhealthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, statusCode, HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

// HandleHealth handles detailed health check requests (for monitoring/debugging)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	verifierCheck := h.checkVerifier(ctx)
	overallStatus := "healthy"
	if verifierCheck.Status != "healthy" {
		overallStatus = "degraded"
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := struct {
		HealthResponse
		Registry struct {
			Connections int `json:"connections"`
			Rooms       int `json:"rooms"`
		} `json:"registry"`
		Memory struct {
			Alloc uint64 `json:"alloc_bytes"`
			Sys   uint64 `json:"sys_bytes"`
			NumGC uint32 `json:"num_gc"`
		} `json:"memory"`
		Goroutines int `json:"goroutines"`
	}{
		HealthResponse: HealthResponse{
			Status:    overallStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Checks:    map[string]Check{"session_verifier": verifierCheck},
		},
		Goroutines: runtime.NumGoroutine(),
	}
	if h.registry != nil {
		response.Registry.Connections = h.registry.ClientCount()
		response.Registry.Rooms = h.registry.RoomCount()
	}
	response.Memory.Alloc = memStats.Alloc
	response.Memory.Sys = memStats.Sys
	response.Memory.NumGC = memStats.NumGC

	// Degraded still serves registered connections.
	WriteJSON(w, http.StatusOK, response)
}

// checkVerifier checks that the main application's session endpoint answers
func (h *HealthHandler) checkVerifier(ctx context.Context) Check {
	if h.verifier == nil {
		return Check{
			Status:  "healthy",
			Message: "sessions verified locally",
		}
	}

	start := time.Now()
	err := h.verifier.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: latency.String(),
		}
	}

	return Check{
		Status:  "healthy",
		Latency: latency.String(),
	}
}
