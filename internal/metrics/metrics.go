package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	VoteIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songvote_intents_total",
			Help: "Allocation intents by outcome",
		},
		[]string{"intent", "result"},
	)

	SubmitOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songvote_submit_songs_total",
			Help: "Per-song results of pending submissions",
		},
		[]string{"outcome"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songvote_retry_attempts_total",
			Help: "Retries of transient store failures",
		},
		[]string{"operation"},
	)

	CommittedReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songvote_committed_reloads_total",
			Help: "Reloads of committed allocations",
		},
		[]string{"status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songvote_active_sessions",
			Help: "Signed-in voter sessions held by this instance",
		},
	)

	TallySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songvote_tally_subscribers",
			Help: "Open live tally streams",
		},
	)

	UserOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_operations_total",
			Help: "Total number of user operations",
		},
		[]string{"operation", "status"},
	)

	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "status"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songvote_events_consumed_total",
			Help: "Vote events handled by the consumer",
		},
		[]string{"type", "status"},
	)
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		method := c.Request.Method
		start := time.Now()

		ActiveRequests.WithLabelValues(method, path).Inc()
		defer ActiveRequests.WithLabelValues(method, path).Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		RequestDuration.WithLabelValues(method, path, status).Observe(duration)
		RequestTotal.WithLabelValues(method, path, status).Inc()

		switch path {
		case "/api/auth/register":
			UserOperations.WithLabelValues("register", status).Inc()
		case "/api/auth/login":
			UserOperations.WithLabelValues("login", status).Inc()
		case "/api/auth/logout":
			UserOperations.WithLabelValues("logout", status).Inc()
		}
	}
}

func RecordIntent(intent string, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	VoteIntents.WithLabelValues(intent, result).Inc()
}

func RecordSubmit(outcome string) {
	SubmitOutcomes.WithLabelValues(outcome).Inc()
}

func RecordRetry(operation string) {
	RetryAttempts.WithLabelValues(operation).Inc()
}

func RecordReload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CommittedReloads.WithLabelValues(status).Inc()
}

func RecordCacheOperation(operation string, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	CacheOperations.WithLabelValues(operation, status).Inc()
}

func RecordEvent(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsConsumed.WithLabelValues(eventType, status).Inc()
}
