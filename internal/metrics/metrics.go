package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zachkp/portfolio/internal/contact"
)

var (
	ContactSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact form submissions by outcome",
		},
		[]string{"outcome"}, // sent, rejected, failed
	)

	ContactDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contact_dispatch_duration_seconds",
			Help:    "Time spent waiting on the mail relay",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// ContactRecorder feeds contact outcomes into the Prometheus collectors.
type ContactRecorder struct{}

func (ContactRecorder) RecordOutcome(_ context.Context, outcome contact.Outcome, dispatch time.Duration) {
	ContactSubmissions.WithLabelValues(string(outcome)).Inc()
	if dispatch > 0 {
		ContactDispatchDuration.WithLabelValues(string(outcome)).Observe(dispatch.Seconds())
	}
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// Middleware times every request against its route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
