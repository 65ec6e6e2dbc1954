// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of chat updates handled, by update kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	updateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of chat update handling in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	likesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_likes_total",
			Help: "Like attempts by result",
		},
		[]string{"result"},
	)

	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_sent_total",
			Help: "Outgoing messages by purpose and delivery status",
		},
		[]string{"purpose", "status"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_dispatch_active_users",
			Help: "Users with queued or running updates",
		},
	)
)

// GinMiddleware records request count and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordUpdate counts one handled update. outcome is "ok" or an error kind.
func RecordUpdate(kind, outcome string, d time.Duration) {
	updatesTotal.WithLabelValues(kind, outcome).Inc()
	updateDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordLike counts a like attempt: "like", "match" or an error kind.
func RecordLike(result string) {
	likesTotal.WithLabelValues(result).Inc()
}

// RecordSend counts an outgoing message.
func RecordSend(purpose string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	messagesSent.WithLabelValues(purpose, status).Inc()
}

// SetActiveUsers reports the dispatcher's live user count.
func SetActiveUsers(n int) {
	queueDepth.Set(float64(n))
}
