package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache reads by key family and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_cache_lookups_total",
		Help: "Cache reads by key family and result",
	}, []string{"family", "result"})

	// ChangeEventsPublished counts change events emitted by table and type.
	ChangeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_change_events_published_total",
		Help: "Total change events published by table and type",
	}, []string{"table", "type"})

	// ChangeStreamSubscribers is the gauge of live change stream subscriptions.
	ChangeStreamSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feedsync_change_stream_subscribers",
		Help: "Number of live change stream subscriptions per table",
	}, []string{"table"})

	// ChangeStreamDrops counts events dropped for slow subscribers.
	ChangeStreamDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_change_stream_drops_total",
		Help: "Total change events dropped due to backpressure",
	}, []string{"table"})

	// FeedOperations counts feed view operations by view kind, operation and outcome.
	FeedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_feed_operations_total",
		Help: "Feed view operations by view, operation and outcome",
	}, []string{"view", "operation", "outcome"})

	// FeedDuplicatesDropped counts live inserts ignored because the id was already present.
	FeedDuplicatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_feed_duplicates_dropped_total",
		Help: "Live inserts dropped because the entity was already in the feed",
	}, []string{"view"})

	// FeedAuthorLookupFailures counts live inserts admitted with a placeholder author.
	FeedAuthorLookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_feed_author_lookup_failures_total",
		Help: "Live inserts whose author lookup failed",
	}, []string{"view"})

	// NotificationEnqueueFailures counts fire-and-forget notifications that failed.
	NotificationEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedsync_notification_enqueue_failures_total",
		Help: "Notifications that could not be enqueued",
	})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedsync_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)

// Outcome labels for FeedOperations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// RecordFeedOperation increments FeedOperations for the given outcome.
func RecordFeedOperation(view, operation string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	FeedOperations.WithLabelValues(view, operation, outcome).Inc()
}
