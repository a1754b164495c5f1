package ports

import (
	"context"

	"github.com/lorrc/severino-relay/internal/core/domain"
)

// SessionVerifier is the port to the main application's session check.
// Any failure, including transport errors, must be returned as an error; the
// caller never falls back to a default identity.
type SessionVerifier interface {
	Verify(ctx context.Context, cookieHeader string) (*domain.Identity, error)
}

// Authenticator decides whether a handshake is admitted and with what identity.
type Authenticator interface {
	Authenticate(ctx context.Context, cookieHeader string) (*domain.Identity, error)
}

// DeliveryReport summarises a single fan-out.
type DeliveryReport struct {
	Recipients int // frames queued
	Dropped    int // members whose buffer was full
}

// EventDeliverer fans an encoded frame out to a room. It never fails.
type EventDeliverer interface {
	Deliver(room string, frame []byte) DeliveryReport
}

// EventPublisher relays a validated event to its room.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) (DeliveryReport, error)
}

// RelayMetrics records relay activity for the metrics endpoint.
type RelayMetrics interface {
	HandshakeAccepted()
	HandshakeRejected(reason string)
	IngressAccepted(kind domain.EventKind, report DeliveryReport)
	IngressRejected(reason string)
}
