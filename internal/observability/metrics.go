package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets spans typical completion latencies, from 100ms to 2m.
var LatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Upstream outcomes recorded by UpstreamRequestsTotal.
const (
	OutcomeOK             = "ok"
	OutcomeRequestError   = "request_error"
	OutcomeTransportError = "transport_error"
	OutcomeTimeout        = "timeout"
	OutcomeStreamError    = "stream_error"
)

var (
	// HTTPRequestsTotal counts served requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distill_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration records request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distill_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks answers currently streamed to clients.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "distill_streaming_connections_active",
			Help: "Active streaming answers",
		},
	)

	// UpstreamRequestsTotal counts completion requests by upstream format
	// and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distill_upstream_requests_total",
			Help: "Upstream completion requests",
		},
		[]string{"format", "model", "outcome"},
	)

	// UpstreamLatency records the time until the final answer is available.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distill_upstream_latency_seconds",
			Help:    "Upstream completion latency",
			Buckets: LatencyBuckets,
		},
		[]string{"format", "model"},
	)

	// PartialDeliveriesTotal counts partial answers handed to sinks.
	PartialDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distill_partial_deliveries_total",
			Help: "Partial answers delivered",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		PartialDeliveriesTotal,
	)
}

// MetricsHandler serves the default registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
