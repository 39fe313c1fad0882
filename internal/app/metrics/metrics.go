package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	paymentCaptures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "payments",
			Name:      "captures_total",
			Help:      "Total number of payment capture attempts.",
		},
		[]string{"result"},
	)

	giftTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "gifts",
			Name:      "transitions_total",
			Help:      "Total number of gift status transitions.",
		},
		[]string{"status"},
	)

	preOrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "preorders",
			Name:      "transitions_total",
			Help:      "Total number of pre-order status transitions.",
		},
		[]string{"status"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "notifications",
			Name:      "failures_total",
			Help:      "Total number of swallowed notification delivery failures.",
		},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "sweeps",
			Name:      "runs_total",
			Help:      "Total number of sweep ticks.",
		},
		[]string{"sweep"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		paymentCaptures,
		giftTransitions,
		preOrderTransitions,
		notificationFailures,
		sweepRuns,
	)
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight request gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight request gauge.
func DecInFlight() { httpInFlight.Dec() }

// RecordCapture records the outcome of a payment capture attempt.
func RecordCapture(result string) {
	paymentCaptures.WithLabelValues(result).Inc()
}

// RecordGiftTransition records a gift entering the given status.
func RecordGiftTransition(status string) {
	giftTransitions.WithLabelValues(status).Inc()
}

// RecordPreOrderTransition records a pre-order entering the given status.
func RecordPreOrderTransition(status string) {
	preOrderTransitions.WithLabelValues(status).Inc()
}

// RecordNotificationFailure records a swallowed notification failure.
func RecordNotificationFailure() { notificationFailures.Inc() }

// RecordSweepRun records one tick of the named sweep.
func RecordSweepRun(sweep string) {
	sweepRuns.WithLabelValues(sweep).Inc()
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
