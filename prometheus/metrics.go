package prometheus

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Status code category counter
	StatusCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"category"},
	)

	// Login counters
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"}, // success, invalid_credentials, locked, disabled
	)

	// Registration counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "register_total",
			Help: "Total number of user registrations",
		},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // missing_token, invalid_token, principal_rejected, ...
	)

	// Permission denials by feature and reason
	PermissionDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_denied_total",
			Help: "Total number of denied permission checks",
		},
		[]string{"feature", "reason"},
	)

	// Audit sink counters
	AuditWrittenCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_written_total",
			Help: "Total number of audit entries persisted",
		},
	)

	AuditDroppedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_dropped_total",
			Help: "Total number of audit entries dropped",
		},
		[]string{"reason"}, // queue_full, insert_failed, closed
	)

	// Rate limiter counter
	RateLimitedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// Webhook counter
	WebhookEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of delivery platform webhook events",
		},
		[]string{"platform", "outcome"},
	)

	// Tenant operation counter
	RestaurantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_operations_total",
			Help: "Total number of admin restaurant operations",
		},
		[]string{"operation"}, // create, delete, modules, subscription, attach_user
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
)

// Gauge metrics
var (
	// Audit queue depth
	AuditQueueGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Number of audit entries waiting to be persisted",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "info",
			Help: "Information about the service",
		},
		[]string{"version"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry, metric names prefixed
// by prefix. Only the first call has an effect.
func InitMetrics(prefix string) {
	registerOnce.Do(func() {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		if name := metricPrefix(prefix); name != "" {
			reg = prometheus.WrapRegistererWithPrefix(name, reg)
		}
		registerCollectors(reg)
	})
}

func registerCollectors(reg prometheus.Registerer) {
	// Register counters
	reg.MustRegister(HTTPRequestCounter)
	reg.MustRegister(StatusCategoryCounter)
	reg.MustRegister(LoginCounter)
	reg.MustRegister(RegisterCounter)
	reg.MustRegister(AuthErrorCounter)
	reg.MustRegister(PermissionDeniedCounter)
	reg.MustRegister(AuditWrittenCounter)
	reg.MustRegister(AuditDroppedCounter)
	reg.MustRegister(RateLimitedCounter)
	reg.MustRegister(WebhookEventCounter)
	reg.MustRegister(RestaurantOperationCounter)

	// Register histograms
	reg.MustRegister(RequestDuration)
	reg.MustRegister(DBOperationDuration)

	// Register gauges
	reg.MustRegister(AuditQueueGauge)
	reg.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// metricPrefix turns a service name into a valid metric name prefix.
func metricPrefix(prefix string) string {
	prefix = strings.Trim(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(prefix), "_")
	if prefix == "" {
		return ""
	}
	return prefix + "_"
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBOperation records how long a database operation on table took.
func ObserveDBOperation(operation, table string, started time.Time) {
	DBOperationDuration.With(prometheus.Labels{
		"operation": operation,
		"table":     table,
	}).Observe(time.Since(started).Seconds())
}

// MetricsMiddleware captures request count and duration. Register it outside the access
// log middleware so the recorded status is the one the error handler wrote.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			labels := prometheus.Labels{
				"endpoint": c.Path(),
				"method":   c.Request().Method,
				"status":   strconv.Itoa(status),
			}
			RequestDuration.With(labels).Observe(time.Since(start).Seconds())
			HTTPRequestCounter.With(labels).Inc()
			if category := statusCategory(status); category != "" {
				StatusCategoryCounter.With(prometheus.Labels{"category": category}).Inc()
			}

			return err
		}
	}
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// RecordLogin records a login attempt outcome
func RecordLogin(outcome string) {
	LoginCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordPermissionDenied records a failed permission check
func RecordPermissionDenied(feature, reason string) {
	PermissionDeniedCounter.With(prometheus.Labels{"feature": feature, "reason": reason}).Inc()
}

// RecordAuditDropped records an audit entry that was not persisted
func RecordAuditDropped(reason string) {
	AuditDroppedCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordRateLimited records a rejected request
func RecordRateLimited(scope string) {
	RateLimitedCounter.With(prometheus.Labels{"scope": scope}).Inc()
}

// RecordWebhookEvent records a webhook delivery outcome
func RecordWebhookEvent(platform, outcome string) {
	WebhookEventCounter.With(prometheus.Labels{"platform": platform, "outcome": outcome}).Inc()
}

// RecordRestaurantOperation records an admin restaurant operation
func RecordRestaurantOperation(operation string) {
	RestaurantOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}
