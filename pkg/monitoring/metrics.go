package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Custody metrics
	reportUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_uploads_total",
			Help: "Total number of report upload attempts",
		},
		[]string{"status"},
	)

	reportAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_access_total",
			Help: "Total number of report view attempts",
		},
		[]string{"role", "status"},
	)

	disclosureGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disclosure_grants_total",
			Help: "Total number of disclosure grant operations",
		},
		[]string{"action", "status"},
	)

	// Anchor ledger metrics
	anchorTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_transactions_total",
			Help: "Total number of anchor ledger commits",
		},
		[]string{"status"},
	)

	anchorTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anchor_transaction_duration_seconds",
			Help:    "Duration of anchor ledger commits in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"status"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"role", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		reportUploadsTotal,
		reportAccessTotal,
		disclosureGrantsTotal,
		anchorTransactionsTotal,
		anchorTransactionDuration,
		authAttemptsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request observation
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUpload records a report upload attempt
func RecordUpload(success bool) {
	reportUploadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordAccess records a report view attempt
func RecordAccess(role string, allowed bool) {
	status := "denied"
	if allowed {
		status = "allowed"
	}
	reportAccessTotal.WithLabelValues(role, status).Inc()
}

// RecordGrantOperation records a share, revoke or annotate operation
func RecordGrantOperation(action string, success bool) {
	disclosureGrantsTotal.WithLabelValues(action, outcome(success)).Inc()
}

// RecordAnchor records an anchor ledger commit attempt
func RecordAnchor(success bool, duration time.Duration) {
	status := outcome(success)
	anchorTransactionsTotal.WithLabelValues(status).Inc()
	anchorTransactionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAuthAttempt records a login attempt
func RecordAuthAttempt(role string, success bool) {
	authAttemptsTotal.WithLabelValues(role, outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
