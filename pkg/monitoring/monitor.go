package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempts_graded_total",
			Help: "Quiz attempts graded, by outcome",
		},
		[]string{"outcome"},
	)

	CertificatesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificates_issued_total",
			Help: "Certificate issue requests, by outcome (created, existing, error)",
		},
		[]string{"outcome"},
	)

	OrderingRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordering_retries_total",
			Help: "Ordering transactions retried after a conflict",
		},
		[]string{"op"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AttemptsGraded)
		prometheus.MustRegister(CertificatesIssued)
		prometheus.MustRegister(OrderingRetries)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
