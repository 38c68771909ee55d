package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics for the application.
type Metrics struct {
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	SignIns        prometheus.Counter
	SignOuts       prometheus.Counter
}

// New creates and registers the metrics with reg. Tests pass a fresh
// registry; main passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xpdash_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "status"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xpdash_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SignIns: f.NewCounter(prometheus.CounterOpts{
			Name: "xpdash_sessions_started_total",
			Help: "Browser sessions that signed in",
		}),
		SignOuts: f.NewCounter(prometheus.CounterOpts{
			Name: "xpdash_sessions_ended_total",
			Help: "Browser sessions that signed out or were rejected upstream",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, statusClass(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementSignIns() {
	if m != nil {
		m.SignIns.Inc()
	}
}

func (m *Metrics) IncrementSignOuts() {
	if m != nil {
		m.SignOuts.Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
