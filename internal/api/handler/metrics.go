package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dtchainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtchain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	dtchainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dtchain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	dtchainChainsBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtchain_chains_built_total",
		Help: "Total chains built or extended, by digest algorithm.",
	}, []string{"algorithm"})

	dtchainRecordsBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtchain_records_built_total",
		Help: "Total records produced, by digest algorithm.",
	}, []string{"algorithm"})

	dtchainVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtchain_verifications_total",
		Help: "Total chain verifications by result.",
	}, []string{"result"})
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
			path = "unmatched"
		}

		dtchainRequestsTotal.WithLabelValues(method, path, status).Inc()
		dtchainRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordChainBuilt records a build or extension that produced the given
// number of new records.
func RecordChainBuilt(algorithm string, records int) {
	dtchainChainsBuiltTotal.WithLabelValues(algorithm).Inc()
	dtchainRecordsBuiltTotal.WithLabelValues(algorithm).Add(float64(records))
}

// RecordVerification records the outcome of a chain verification.
func RecordVerification(valid bool) {
	if valid {
		dtchainVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		dtchainVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}
