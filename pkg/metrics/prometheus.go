package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks calls that failed through a circuit breaker
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// OrdersTotal tracks checkout attempts by outcome
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"status"},
	)

	// OrderAmount tracks submitted order totals
	OrderAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_amount",
			Help:    "Totals of successfully submitted orders",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// CheckoutValidationFailures counts rejected checkout forms by rule
	CheckoutValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_validation_failures_total",
			Help: "Checkout submissions rejected by validation, by rule",
		},
		[]string{"rule"},
	)

	// StoreWriteFailures counts failed persistence writes per key
	StoreWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_failures_total",
			Help: "Failed writes to the persistent store by key",
		},
		[]string{"key"},
	)

	// AdoptionApplications counts registry mutations by action
	AdoptionApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adoption_applications_total",
			Help: "Adoption application registry mutations by action",
		},
		[]string{"action"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
