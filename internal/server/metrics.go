package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the comment service. Each
// instance owns a private registry so tests and embedded handlers do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec   // requests by operation and status code
	duration     *prometheus.HistogramVec // handler latency by operation
	listLength   prometheus.Gauge         // comments in the list after the last read or write
	casConflicts prometheus.Counter       // lost compare-and-swap races
}

// NewMetrics creates and registers the service metrics plus Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvcomments",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by resolved operation and status code",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvcomments",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by resolved operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		listLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kvcomments",
			Name:      "list_length",
			Help:      "Number of comments in the stored list",
		}),
		casConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvcomments",
			Name:      "cas_conflicts_total",
			Help:      "Comment list writes that lost a compare-and-swap race and were retried",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.listLength,
		m.casConflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(operation string, code int, d time.Duration) {
	m.requests.WithLabelValues(operation, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ListLength sets the list length gauge.
func (m *Metrics) ListLength(n int) {
	m.listLength.Set(float64(n))
}

// CASConflict counts one lost compare-and-swap race.
func (m *Metrics) CASConflict() {
	m.casConflicts.Inc()
}
