package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keygate/internal/issuance"
	"github.com/jmerrifield20/keygate/internal/oracle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	keygateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	keygateRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keygate_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	keygateIssuanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_issuance_total",
		Help: "Total completion callbacks by terminal state.",
	}, []string{"outcome"})

	keygateOracleChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_oracle_checks_total",
		Help: "Total Linkvertise verification calls by outcome.",
	}, []string{"outcome"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			// Unmatched routes share one label to keep cardinality bounded.
			path = "unmatched"
		}

		keygateRequestsTotal.WithLabelValues(method, path, status).Inc()
		keygateRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordIssuance records the terminal state of a completion callback.
func RecordIssuance(kind issuance.Kind) {
	keygateIssuanceTotal.WithLabelValues(string(kind)).Inc()
}

// RecordOracleCheck records a verification call outcome.
func RecordOracleCheck(outcome oracle.Outcome) {
	keygateOracleChecksTotal.WithLabelValues(string(outcome)).Inc()
}
