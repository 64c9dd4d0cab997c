package monitoring

import (
	"strconv"
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

	// FinalizationCounter counts finalize outcomes by how they resolved:
	// "submitted" for the winner of the unique-index race, "duplicate" for
	// a loser that returned the existing submission, "expired" for sweeps.
	FinalizationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_finalizations_total",
			Help: "Total number of attempt finalizations by outcome",
		},
		[]string{"outcome"},
	)

	// PropagationUpdates counts Submission+Result pairs rewritten after
	// answer key edits.
	PropagationUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_key_propagation_updates_total",
			Help: "Total number of submissions re-scored after answer key changes",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(FinalizationCounter)
	prometheus.MustRegister(PropagationUpdates)
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
