package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

type fakeRegistry struct {
	clients, rooms int
}

func (f fakeRegistry) ClientCount() int { return f.clients }
func (f fakeRegistry) RoomCount() int { return f.rooms }

func parse(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.WriteTo(&buf))

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(&buf)
	require.NoError(t, err)
	return mfs
}

func labelled(mf *dto.MetricFamily, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestCollector_CountsRelayActivity(t *testing.T) {
	c := NewCollector(fakeRegistry{clients: 3, rooms: 4})

	c.HandshakeAccepted()
	c.HandshakeAccepted()
	c.HandshakeRejected("missing_cookie")
	c.IngressAccepted(domain.EventTicketNew, ports.DeliveryReport{Recipients: 5, Dropped: 1})
	c.IngressAccepted(domain.EventTicketNew, ports.DeliveryReport{Recipients: 2})
	c.IngressAccepted(domain.EventTicketAssigned, ports.DeliveryReport{})
	c.IngressRejected("unauthorized")

	mfs := parse(t, c)

	assert.Equal(t, float64(2), mfs[HandshakesAcceptedName].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), labelled(mfs[HandshakesRejectedName], "missing_cookie"))
	assert.Equal(t, float64(2), labelled(mfs[IngressEventsName], "ticket:new"))
	assert.Equal(t, float64(1), labelled(mfs[IngressEventsName], "ticket:assigned"))
	assert.Equal(t, float64(1), labelled(mfs[IngressRejectedName], "unauthorized"))
	assert.Equal(t, float64(7), mfs[FramesQueuedName].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), mfs[FramesDroppedName].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(3), mfs[ConnectionsName].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, float64(4), mfs[RoomsName].GetMetric()[0].GetGauge().GetValue())
}

func TestCollector_WithoutRegistryOmitsGauges(t *testing.T) {
	mfs := parse(t, NewCollector(nil))

	assert.NotContains(t, mfs, ConnectionsName)
	assert.Contains(t, mfs, HandshakesAcceptedName)
	// labelled counters only appear once a label value has been seen
	assert.NotContains(t, mfs, IngressRejectedName)
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IngressRejected("malformed")
				c.IngressAccepted(domain.EventTicketClosed, ports.DeliveryReport{Recipients: 1})
			}
		}()
	}
	wg.Wait()

	mfs := parse(t, c)
	assert.Equal(t, float64(800), labelled(mfs[IngressRejectedName], "malformed"))
	assert.Equal(t, float64(800), mfs[FramesQueuedName].GetMetric()[0].GetCounter().GetValue())
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(fakeRegistry{clients: 1, rooms: 1})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), ConnectionsName+" 1")
}
