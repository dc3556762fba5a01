package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "meter_reading",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meter_reading",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "meter_reading",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meter_reading",
			Subsystem: "measures",
			Name:      "uploads_total",
			Help:      "Measure uploads by meter type and outcome code.",
		},
		[]string{"measure_type", "outcome"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meter_reading",
			Subsystem: "measures",
			Name:      "confirmations_total",
			Help:      "Measure confirmations by outcome code.",
		},
		[]string{"outcome"},
	)

	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meter_reading",
			Subsystem: "measures",
			Name:      "anomalies_total",
			Help:      "Implausible readings flagged at upload.",
		},
		[]string{"measure_type"},
	)

	visionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "meter_reading",
			Subsystem: "vision",
			Name:      "extraction_duration_seconds",
			Help:      "Duration of vision extractions (upload and inference).",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		uploads,
		confirmations,
		anomalies,
		visionDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload counts an upload outcome. outcome is "OK" or an error code.
func RecordUpload(measureType, outcome string) {
	uploads.WithLabelValues(measureType, outcome).Inc()
}

// RecordConfirmation counts a confirmation outcome.
func RecordConfirmation(outcome string) {
	confirmations.WithLabelValues(outcome).Inc()
}

// RecordAnomaly counts a flagged reading.
func RecordAnomaly(measureType string) {
	anomalies.WithLabelValues(measureType).Inc()
}

// ObserveVision records the duration of one vision extraction.
func ObserveVision(duration time.Duration, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	visionDuration.WithLabelValues(label).Observe(duration.Seconds())
}
