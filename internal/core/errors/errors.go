package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent relay rule violations
var (
	// Ingress authorization
	ErrUnauthorized = errors.New("unauthorized")

	// Handshake authentication
	ErrMissingCookie       = errors.New("cookie header is missing")
	ErrSessionRejected     = errors.New("session verifier rejected the session")
	ErrVerifierUnavailable = errors.New("session verifier unavailable")
	ErrInactiveIdentity    = errors.New("identity is not active")
	ErrMissingUserID       = errors.New("identity has no user id")

	// Event validation
	ErrMalformedBody  = errors.New("malformed request body")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrUnknownEvent   = errors.New("unknown event kind")
	ErrInvalidPayload = errors.New("invalid event payload")

	// Registry
	ErrRegistryClosed = errors.New("connection registry is closed")

	// Handshake throttling
	ErrRateLimited = errors.New("rate limit exceeded")
)

// IsAuthenticationFailure reports whether err is one of the handshake
// rejection reasons.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrMissingCookie) ||
		errors.Is(err, ErrSessionRejected) ||
		errors.Is(err, ErrVerifierUnavailable) ||
		errors.Is(err, ErrInactiveIdentity) ||
		errors.Is(err, ErrMissingUserID)
}

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewPayloadTooLargeError(limit int64) *AppError {
	return &AppError{
		Err:        ErrBodyTooLarge,
		Message:    "Request body too large",
		Code:       "PAYLOAD_TOO_LARGE",
		StatusCode: 413,
		Details:    map[string]interface{}{"maxBytes": limit},
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Unwrap lets callers match field failures with errors.Is(err, ErrInvalidPayload).
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidPayload
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
