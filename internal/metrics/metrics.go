// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider calls, labelled by item type, operation (search|discover|detail)
	// and outcome (ok|error|timeout|unavailable|not_found).
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_provider_requests_total",
			Help: "Total number of catalog provider calls",
		},
		[]string{"kind", "operation", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "andrate_provider_request_duration_seconds",
			Help:    "Duration of catalog provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "andrate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Query coordinator
	QueryFanOuts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_query_fanouts_total",
			Help: "Total number of provider fan-outs started",
		},
		[]string{"mode"},
	)

	StaleResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "andrate_query_stale_results_total",
			Help: "Total number of fan-out results dropped because a newer query superseded them",
		},
	)

	// Library
	LibrarySaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_library_saves_total",
			Help: "Total number of library save attempts",
		},
		[]string{"outcome"},
	)

	// Metadata cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_metadata_cache_hits_total",
			Help: "Total number of provider response cache hits",
		},
		[]string{"operation"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_metadata_cache_misses_total",
			Help: "Total number of provider response cache misses",
		},
		[]string{"operation"},
	)

	// Event bus
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_events_published_total",
			Help: "Total number of events published on the bus",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_events_dropped_total",
			Help: "Total number of event deliveries skipped because a subscriber was full",
		},
		[]string{"type"},
	)

	// HTTP API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "andrate_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "status"},
	)

	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "andrate_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "andrate_websocket_connections",
			Help: "Current number of open search surfaces",
		},
	)
)
