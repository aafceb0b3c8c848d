package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Lifecycle metrics
	requestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_requests_created_total",
			Help: "Total approval requests created, labeled by initial status",
		},
		[]string{"status"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_decisions_total",
			Help: "Total decisions applied, labeled by outcome and path",
		},
		[]string{"decision", "path"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgate_webhook_deliveries_total",
			Help: "Total webhook delivery attempts by outcome",
		},
		[]string{"status"},
	)

	rateLimitDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentgate_rate_limit_denials_total",
			Help: "Total requests denied by the rate limiter",
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 200 && statusCode < 300 {
		status = "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		status = "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		status = "4xx"
	} else if statusCode >= 500 {
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordRequestCreated records a new approval request
func RecordRequestCreated(status string) {
	requestsCreated.WithLabelValues(status).Inc()
}

// RecordDecision records an applied decision. Path is "api", "token", or
// "policy".
func RecordDecision(decision, path string) {
	decisionsTotal.WithLabelValues(decision, path).Inc()
}

// RecordWebhookDelivery records one delivery attempt outcome
func RecordWebhookDelivery(status string) {
	webhookDeliveries.WithLabelValues(status).Inc()
}

// RecordRateLimitDenial records a throttled request
func RecordRateLimitDenial() {
	rateLimitDenials.Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
