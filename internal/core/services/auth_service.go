package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// AuthService admits handshakes by consulting the session verifier.
type AuthService struct {
	verifier ports.SessionVerifier
	timeout  time.Duration
}

var _ ports.Authenticator = (*AuthService)(nil)

// NewAuthService creates an authenticator bounded by timeout per verification.
// A non-positive timeout leaves the deadline to the caller's context.
func NewAuthService(verifier ports.SessionVerifier, timeout time.Duration) *AuthService {
	return &AuthService{
		verifier: verifier,
		timeout:  timeout,
	}
}

// Authenticate returns the identity for cookieHeader, or one of the
// authentication sentinel errors. It never returns an identity alongside an
// error.
func (s *AuthService) Authenticate(ctx context.Context, cookieHeader string) (*domain.Identity, error) {
	// 1. No cookie, nothing to verify
	if strings.TrimSpace(cookieHeader) == "" {
		return nil, apperrors.ErrMissingCookie
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// 2. Round trip to the verifier
	identity, err := s.verifier.Verify(ctx, cookieHeader)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionRejected) {
			return nil, err
		}
		if errors.Is(err, apperrors.ErrVerifierUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrVerifierUnavailable, err)
	}
	if identity == nil {
		return nil, apperrors.ErrSessionRejected
	}

	// 3. Identity checks. The user id names the user room, so it is
	// normalized once here.
	normalized := *identity
	normalized.UserID = strings.TrimSpace(identity.UserID)
	if normalized.UserID == "" {
		return nil, apperrors.ErrMissingUserID
	}
	if !normalized.IsActive {
		return nil, apperrors.ErrInactiveIdentity
	}

	return &normalized, nil
}

// RejectionReason maps an authentication error to a short metrics label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingCookie):
		return "missing_cookie"
	case errors.Is(err, apperrors.ErrSessionRejected):
		return "session_rejected"
	case errors.Is(err, apperrors.ErrVerifierUnavailable):
		return "verifier_unavailable"
	case errors.Is(err, apperrors.ErrInactiveIdentity):
		return "inactive"
	case errors.Is(err, apperrors.ErrMissingUserID):
		return "missing_user_id"
	default:
		return "other"
	}
}
