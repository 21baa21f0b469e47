package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordsRequestsAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest(http.MethodGet, "/api/health", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/health", http.StatusOK, 5*time.Millisecond)
	m.IncEvent("booking.created")
	m.IncPayment("")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/health", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("booking.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.payments.WithLabelValues("unknown")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodPost, "/x", http.StatusCreated, time.Second)
		m.IncEvent("payment.succeeded")
		m.IncPayment("recorded")
	})

	unregistered := New(nil)
	assert.NotPanics(t, func() { unregistered.IncEvent("booking.created") })
}
