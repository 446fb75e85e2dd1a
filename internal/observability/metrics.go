package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	notificationsCreatedTotal *prometheus.CounterVec
	pushSentTotal             prometheus.Counter
	pushFailedTotal           prometheus.Counter
	streamClientsActive       prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniserve_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uniserve_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniserve_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		notificationsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniserve_notifications_created_total",
			Help: "Total number of notification records created, by type.",
		}, []string{"type"})

		pushSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uniserve_push_sent_total",
			Help: "Total number of push messages accepted by the transport.",
		})

		pushFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uniserve_push_failed_total",
			Help: "Total number of push messages rejected per token or batch.",
		})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uniserve_stream_clients_active",
			Help: "Number of currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			notificationsCreatedTotal,
			pushSentTotal,
			pushFailedTotal,
			streamClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// NotificationsCreated exposes the counter for created notification records.
func NotificationsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsCreatedTotal
}

// PushSent exposes the counter for accepted push messages.
func PushSent() prometheus.Counter {
	RegisterMetrics()
	return pushSentTotal
}

// PushFailed exposes the counter for failed push messages.
func PushFailed() prometheus.Counter {
	RegisterMetrics()
	return pushFailedTotal
}

// StreamClientsActive exposes the gauge of connected stream clients.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
