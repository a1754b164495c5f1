package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// maxResponseBytes bounds the verifier response body read into memory.
const maxResponseBytes = 16 * 1024

// HTTPVerifier asks the main application who a cookie belongs to.
type HTTPVerifier struct {
	verifyURL string
	client    *http.Client
	logger    *slog.Logger
}

var _ ports.SessionVerifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier creates a verifier calling verifyURL. timeout bounds each
// round trip independently of the caller's context.
func NewHTTPVerifier(verifyURL string, timeout time.Duration, logger *slog.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With("component", "session_verifier"),
	}
}

// Verify forwards cookieHeader to the session endpoint. Non-2xx responses
// map to ErrSessionRejected; transport failures and unreadable bodies map to
// ErrVerifierUnavailable.
func (v *HTTPVerifier) Verify(ctx context.Context, cookieHeader string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperrors.ErrVerifierUnavailable, err)
	}
	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("session verifier unreachable", "url", v.verifyURL, "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: status %d", apperrors.ErrSessionRejected, resp.StatusCode)
	}

	var identity domain.Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&identity); err != nil {
		return nil, fmt.Errorf("%w: decode identity: %v", apperrors.ErrVerifierUnavailable, err)
	}

	return &identity, nil
}

// Ping checks that the main application answers at all. Any response below
// 500 counts as reachable, since the probe carries no session.
func (v *HTTPVerifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifyURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("session endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
