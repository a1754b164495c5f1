package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/ports"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
)

// IngressHandler accepts events from the main application on POST /emit.
// The internal secret is checked by middleware before this handler runs.
type IngressHandler struct {
	publisher    ports.EventPublisher
	metrics      ports.RelayMetrics
	errorHandler *ErrorHandler
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewIngressHandler creates an ingress handler. metrics may be nil.
func NewIngressHandler(
	publisher ports.EventPublisher,
	metrics ports.RelayMetrics,
	errorHandler *ErrorHandler,
	maxBodyBytes int64,
	logger *slog.Logger,
) *IngressHandler {
	return &IngressHandler{
		publisher:    publisher,
		metrics:      metrics,
		errorHandler: errorHandler,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// ServeHTTP decodes, validates and relays one event.
func (h *IngressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. Read the bounded body
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.reject(w, r, apperrors.NewPayloadTooLargeError(h.maxBodyBytes))
			return
		}
		h.reject(w, r, apperrors.NewBadRequestError(apperrors.ErrMalformedBody, "Malformed request body"))
		return
	}

	// 2. Decode and validate; nothing is delivered on failure
	event, err := domain.DecodeEvent(body)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	// 3. Hand to the registry
	report, err := h.publisher.Publish(ctx, event)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	logging.LoggerFromContext(ctx, h.logger).Info("event accepted",
		"event", event.Kind,
		"room", event.Room,
		"recipients", report.Recipients,
		"dropped", report.Dropped,
	)

	WriteJSON(w, http.StatusAccepted, EmitResponse{
		Status:     "accepted",
		Room:       event.Room,
		Event:      string(event.Kind),
		Recipients: report.Recipients,
	})
}

func (h *IngressHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	if h.metrics != nil {
		h.metrics.IngressRejected(ingressRejectionReason(err))
	}
	h.errorHandler.Handle(w, r, err)
}
