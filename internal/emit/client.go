// Package emit is the calling side of the relay ingress. Business code uses
// it after committing a write to notify connected browsers; the result is
// for logging only.
package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/validation"
)

// DefaultTimeout bounds a single emit round trip.
const DefaultTimeout = time.Second

// secretHeader is the ingress authentication header.
const secretHeader = "X-Internal-Secret"

// Outcome is the coarse result of an emit.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Failed    Outcome = "failed"
)

// Result describes one emit attempt. Delivered means the relay accepted the
// event, not that any browser received it.
type Result struct {
	Outcome    Outcome
	Reason     string // set when Failed
	StatusCode int    // 0 when no response was received
	Recipients int    // as reported by the relay
}

// OK reports whether the relay accepted the event.
func (r Result) OK() bool {
	return r.Outcome == Delivered
}

func failed(status int, format string, args ...any) Result {
	return Result{Outcome: Failed, Reason: fmt.Sprintf(format, args...), StatusCode: status}
}

// LogResult writes r at Info when delivered and Warn otherwise.
func LogResult(logger *slog.Logger, room string, kind domain.EventKind, r Result) {
	attrs := []any{
		"room", room,
		"event", kind,
		"outcome", r.Outcome,
	}
	if r.StatusCode != 0 {
		attrs = append(attrs, "status_code", r.StatusCode)
	}
	if r.OK() {
		logger.Info("relay event emitted", append(attrs, "recipients", r.Recipients)...)
		return
	}
	logger.Warn("relay event not emitted", append(attrs, "reason", r.Reason)...)
}

// Client posts events to the relay ingress.
type Client struct {
	endpoint string
	secret   string
	http     *http.Client
}

// NewClient creates a client for the relay at baseURL. A non-positive
// timeout uses DefaultTimeout.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/emit",
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
	}
}

type emitRequest struct {
	Room    string           `json:"room"`
	Event   domain.EventKind `json:"event"`
	Payload domain.Payload   `json:"payload"`
}

type emitResponse struct {
	Recipients int `json:"recipients"`
}

// Emit posts payload to room once. It never retries and never returns an
// error; every failure is folded into the Result.
func (c *Client) Emit(ctx context.Context, room string, payload domain.Payload) Result {
	if payload == nil {
		return failed(0, "payload is required")
	}

	v := validation.NewValidator()
	v.Required("room", room).MaxLength("room", room, domain.MaxRoomLength)
	payload.Validate(v)
	if err := v.Err(); err != nil {
		return failed(0, "invalid event: %s", describe(v))
	}

	body, err := json.Marshal(emitRequest{Room: room, Event: payload.Kind(), Payload: payload})
	if err != nil {
		return failed(0, "encode: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(0, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failed(0, "timeout: %v", err)
		}
		return failed(0, "transport: %v", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if readErr != nil {
			return failed(resp.StatusCode, "relay responded %d: read body: %v", resp.StatusCode, readErr)
		}
		return failed(resp.StatusCode, "relay responded %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var ack emitResponse
	_ = json.Unmarshal(data, &ack)

	return Result{Outcome: Delivered, StatusCode: resp.StatusCode, Recipients: ack.Recipients}
}

// TicketAssigned notifies the technician the ticket was assigned to.
func (c *Client) TicketAssigned(ctx context.Context, p domain.TicketAssignedPayload) Result {
	return c.Emit(ctx, domain.UserRoom(p.AssignedTo.ID), &p)
}

// TicketNew notifies every manager.
func (c *Client) TicketNew(ctx context.Context, p domain.TicketNewPayload) Result {
	return c.Emit(ctx, domain.ManagersRoom, &p)
}

// ExecutionRegistered notifies every manager.
func (c *Client) ExecutionRegistered(ctx context.Context, p domain.ExecutionRegisteredPayload) Result {
	return c.Emit(ctx, domain.ManagersRoom, &p)
}

// TicketClosed notifies recipientID, usually the user who opened the ticket.
func (c *Client) TicketClosed(ctx context.Context, recipientID string, p domain.TicketClosedPayload) Result {
	return c.Emit(ctx, domain.UserRoom(recipientID), &p)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// describe flattens field errors into "field: message" pairs.
func describe(v *validation.Validator) string {
	parts := make([]string, 0)
	for field, msgs := range v.Errors().Errors {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
