package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("/profile", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest("/profile", http.StatusSeeOther, time.Millisecond)
	m.ObserveRequest("/charts/xp.svg", http.StatusBadGateway, time.Millisecond)
	m.IncrementSignIns()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/profile", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/profile", "3xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/charts/xp.svg", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignIns))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SignOuts))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", http.StatusOK, time.Millisecond)
		m.IncrementSignIns()
		m.IncrementSignOuts()
	})
}
