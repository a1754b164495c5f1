// Package metrics exposes relay counters on a private Prometheus registry.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// Metric names exposed on /metrics.
const (
	ConnectionsName        = "relay_connections"
	RoomsName              = "relay_rooms"
	HandshakesAcceptedName = "relay_handshakes_accepted_total"
	HandshakesRejectedName = "relay_handshakes_rejected_total"
	IngressEventsName      = "relay_ingress_events_total"
	IngressRejectedName    = "relay_ingress_rejected_total"
	FramesQueuedName       = "relay_frames_queued_total"
	FramesDroppedName      = "relay_frames_dropped_total"
)

// RegistryStats exposes the live gauges of the connection registry.
type RegistryStats interface {
	ClientCount() int
	RoomCount() int
}

// Collector implements ports.RelayMetrics.
type Collector struct {
	registry *prometheus.Registry

	handshakesAccepted prometheus.Counter
	handshakesRejected *prometheus.CounterVec // by reason
	ingressEvents      *prometheus.CounterVec // by event kind
	ingressRejected    *prometheus.CounterVec // by reason
	framesQueued       prometheus.Counter
	framesDropped      prometheus.Counter
}

var _ ports.RelayMetrics = (*Collector)(nil)

// NewCollector creates a collector with its own registry. stats may be nil,
// in which case the connection and room gauges are not registered.
func NewCollector(stats RegistryStats) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		handshakesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: HandshakesAcceptedName,
			Help: "Websocket handshakes admitted.",
		}),
		handshakesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HandshakesRejectedName,
			Help: "Websocket handshakes rejected before upgrade.",
		}, []string{"reason"}),
		ingressEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: IngressEventsName,
			Help: "Events accepted at ingress.",
		}, []string{"event"}),
		ingressRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: IngressRejectedName,
			Help: "Ingress requests rejected.",
		}, []string{"reason"}),
		framesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: FramesQueuedName,
			Help: "Frames queued to connection buffers.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: FramesDroppedName,
			Help: "Frames dropped on full connection buffers.",
		}),
	}

	c.registry.MustRegister(
		c.handshakesAccepted,
		c.handshakesRejected,
		c.ingressEvents,
		c.ingressRejected,
		c.framesQueued,
		c.framesDropped,
	)

	if stats != nil {
		c.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: ConnectionsName,
				Help: "Registered websocket connections.",
			}, func() float64 { return float64(stats.ClientCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: RoomsName,
				Help: "Rooms with at least one member.",
			}, func() float64 { return float64(stats.RoomCount()) }),
		)
	}

	return c
}

func (c *Collector) HandshakeAccepted() {
	c.handshakesAccepted.Inc()
}

func (c *Collector) HandshakeRejected(reason string) {
	c.handshakesRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) IngressAccepted(kind domain.EventKind, report ports.DeliveryReport) {
	c.ingressEvents.WithLabelValues(string(kind)).Inc()
	c.framesQueued.Add(float64(report.Recipients))
	c.framesDropped.Add(float64(report.Dropped))
}

func (c *Collector) IngressRejected(reason string) {
	c.ingressRejected.WithLabelValues(reason).Inc()
}

// WriteTo encodes the current snapshot in the text exposition format.
func (c *Collector) WriteTo(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry for scrapers.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
