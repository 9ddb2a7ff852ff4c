package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts all HTTP requests processed by the service.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled by the service.",
		},
		[]string{"path", "method", "status"},
	)

	// HTTPRequestDuration measures how long HTTP handlers take to respond.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of latencies for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// QueryLookups counts cache lookups by outcome: fresh, stale or miss.
	QueryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_lookups_total",
			Help: "Query cache lookups by entity and outcome.",
		},
		[]string{"entity", "result"},
	)

	// QueryFetches counts fetches actually issued to the backend.
	QueryFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_fetches_total",
			Help: "Count of query fetches issued, by entity and status.",
		},
		[]string{"entity", "status"},
	)

	// QueryFetchDuration measures fetch latency including validation and joins.
	QueryFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_fetch_duration_seconds",
			Help:    "Histogram of query fetch durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	// QueryDeduplicated counts callers that attached to an in-flight fetch.
	QueryDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_deduplicated_total",
			Help: "Resolutions served by an already in-flight fetch.",
		},
		[]string{"entity"},
	)

	// CacheInvalidations counts entries marked stale.
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidated_entries_total",
			Help: "Number of cache entries marked stale, by entity.",
		},
		[]string{"entity"},
	)

	// Mutations counts mutation attempts by kind and status.
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutations_total",
			Help: "Count of mutations dispatched.",
		},
		[]string{"kind", "status"},
	)

	// ExternalRequests counts calls to the backend API.
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_requests_total",
			Help: "Count of requests to the backend API.",
		},
		[]string{"method", "status"},
	)

	// ExternalRequestDuration measures duration of calls to the backend API.
	ExternalRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_request_duration_seconds",
			Help:    "Histogram of backend API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// JoinMemo counts lookups in the resolved-dish memo.
	JoinMemo = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "join_memo_lookups_total",
			Help: "Resolved dish memo lookups by result.",
		},
		[]string{"result"},
	)

	// Notifications counts events delivered to notification sinks.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification events by sink and status.",
		},
		[]string{"sink", "status"},
	)
)

// Register registers all metrics in the default registry.
func Register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QueryLookups,
		QueryFetches,
		QueryFetchDuration,
		QueryDeduplicated,
		CacheInvalidations,
		Mutations,
		ExternalRequests,
		ExternalRequestDuration,
		JoinMemo,
		Notifications,
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordLookup records the outcome of a cache lookup.
func RecordLookup(entity, result string) {
	QueryLookups.WithLabelValues(entity, result).Inc()
}

// RecordFetch records a completed fetch with its result status.
func RecordFetch(entity string, err error, durationSeconds float64) {
	QueryFetches.WithLabelValues(entity, status(err)).Inc()
	QueryFetchDuration.WithLabelValues(entity).Observe(durationSeconds)
}

// RecordDeduplicated records a resolution that joined an in-flight fetch.
func RecordDeduplicated(entity string) {
	QueryDeduplicated.WithLabelValues(entity).Inc()
}

// RecordInvalidation records how many entries of an entity were marked stale.
func RecordInvalidation(entity string, count int) {
	CacheInvalidations.WithLabelValues(entity).Add(float64(count))
}

// RecordMutation increments Mutations with result status.
func RecordMutation(kind string, err error) {
	Mutations.WithLabelValues(kind, status(err)).Inc()
}

// RecordExternalRequest records metrics for a backend API call.
func RecordExternalRequest(method string, err error, durationSeconds float64) {
	ExternalRequests.WithLabelValues(method, status(err)).Inc()
	ExternalRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordJoinMemo records a memo hit or miss.
func RecordJoinMemo(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	JoinMemo.WithLabelValues(result).Inc()
}

// RecordNotification records delivery of an event to a sink.
func RecordNotification(sink string, err error) {
	Notifications.WithLabelValues(sink, status(err)).Inc()
}
