package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stackit_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesTotal counts applied votes by entity kind and direction.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_votes_total",
		Help: "Total number of applied votes",
	}, []string{"entity", "direction"})

	// ContentCreatedTotal counts created questions, answers and comments.
	ContentCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_content_created_total",
		Help: "Total number of created content records by kind",
	}, []string{"kind"})

	// NotificationsCreatedTotal counts notifications raised by type.
	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_notifications_created_total",
		Help: "Total number of notifications created by type",
	}, []string{"type"})

	// CacheLookups counts cache-aside lookups by outcome (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_cache_lookups_total",
		Help: "Cache-aside lookups by outcome",
	}, []string{"outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
