package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
)

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// unauthorizedResponse is written for every authentication failure so the
// caller cannot tell the reasons apart.
var unauthorizedResponse = ErrorResponse{
	Error: "Authentication required",
	Code:  "UNAUTHORIZED",
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error and writes the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, err)
		if appErr.StatusCode == http.StatusUnauthorized {
			h.writeErrorResponse(w, http.StatusUnauthorized, unauthorizedResponse)
			return
		}
		h.writeErrorResponse(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusBadRequest, err)
		h.writeValidationErrorResponse(w, validationErrs)
		return
	}

	statusCode, response := h.mapDomainError(err)
	h.logError(r, statusCode, err)
	h.writeErrorResponse(w, statusCode, response)
}

// mapDomainError converts domain errors to HTTP status codes and responses
func (h *ErrorHandler) mapDomainError(err error) (int, ErrorResponse) {
	switch {
	// Authentication
	case errors.Is(err, apperrors.ErrUnauthorized),
		apperrors.IsAuthenticationFailure(err):
		return http.StatusUnauthorized, unauthorizedResponse

	// Ingress body errors
	case errors.Is(err, apperrors.ErrMalformedBody):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Malformed request body",
			Code:  "BAD_REQUEST",
		}
	case errors.Is(err, apperrors.ErrUnknownEvent):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Unknown event",
			Code:  "VALIDATION_ERROR",
			Details: map[string]interface{}{
				"allowed": domain.EventKindNames(),
			},
		}
	case errors.Is(err, apperrors.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "Request body too large",
			Code:  "PAYLOAD_TOO_LARGE",
		}

	// Shutdown
	case errors.Is(err, apperrors.ErrRegistryClosed):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "Relay is shutting down",
			Code:  "UNAVAILABLE",
		}

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		}
	}
}

// logError logs the error with appropriate context
func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error) {
	logAttrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err.Error(),
	}

	logger := logging.LoggerFromContext(r.Context(), h.logger)

	switch {
	case statusCode >= 500:
		logger.Error("server error", logAttrs...)
	case statusCode >= 400:
		logger.Warn("client error", logAttrs...)
	default:
		logger.Info("request error", logAttrs...)
	}
}

// writeErrorResponse writes a JSON error response
func (h *ErrorHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// writeValidationErrorResponse writes a validation error response
func (h *ErrorHandler) writeValidationErrorResponse(w http.ResponseWriter, errs *apperrors.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
		Error:  "Validation failed",
		Code:   "VALIDATION_ERROR",
		Fields: errs.Errors,
	})
}

// HandleError handles err inline in handlers and reports whether it did.
// Usage: if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}

// ingressRejectionReason maps an ingress error to a short metrics label.
func ingressRejectionReason(err error) string {
	var validationErrs *apperrors.ValidationErrors
	switch {
	case errors.Is(err, apperrors.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, apperrors.ErrMalformedBody):
		return "malformed"
	case errors.Is(err, apperrors.ErrUnknownEvent):
		return "unknown_event"
	case errors.As(err, &validationErrs):
		return "invalid_payload"
	default:
		return "internal"
	}
}
