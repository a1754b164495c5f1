package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/ports"
	"github.com/lorrc/severino-relay/internal/infrastructure/logging"
)

// RelayService hands validated ingress events to the connection registry.
type RelayService struct {
	deliverer ports.EventDeliverer
	metrics   ports.RelayMetrics
	logger    *slog.Logger
}

// NewRelayService creates a relay service. metrics may be nil.
func NewRelayService(deliverer ports.EventDeliverer, metrics ports.RelayMetrics, logger *slog.Logger) *RelayService {
	return &RelayService{
		deliverer: deliverer,
		metrics:   metrics,
		logger:    logger.With("component", "relay_service"),
	}
}

// Publish encodes the event once and fans it out to its room. The only error
// is a frame encoding failure, in which case nothing was delivered.
func (s *RelayService) Publish(ctx context.Context, event *domain.Event) (ports.DeliveryReport, error) {
	frame, err := event.Frame()
	if err != nil {
		return ports.DeliveryReport{}, err
	}

	report := s.deliverer.Deliver(event.Room, frame)

	if s.metrics != nil {
		s.metrics.IngressAccepted(event.Kind, report)
	}

	logging.LoggerFromContext(ctx, s.logger).Debug("event relayed",
		"event", event.Kind,
		"room", event.Room,
		"recipients", report.Recipients,
		"dropped", report.Dropped,
	)

	return report, nil
}
