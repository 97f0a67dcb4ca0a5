package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tree metrics
	TreePoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bhtree_points",
			Help: "Number of points stored in the layout tree",
		},
	)

	TreeNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bhtree_nodes",
			Help: "Number of live tree nodes by kind",
		},
		[]string{"kind"}, // kind: leaf, internal
	)

	TreeDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bhtree_depth",
			Help: "Number of levels in the layout tree",
		},
	)

	TreeHalfWidth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bhtree_root_half_width",
			Help: "Half-width of the tree's root bounds",
		},
	)

	TreeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bhtree_operations_total",
			Help: "Total number of tree mutations by operation",
		},
		[]string{"op"}, // op: push, update, remove
	)

	TreeInvariantFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bhtree_invariant_failures_total",
			Help: "Total number of tree validations or operations that found a broken invariant",
		},
	)

	// Layout metrics
	LayoutStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_steps_total",
			Help: "Total number of force-directed layout steps",
		},
		[]string{"status"}, // status: success, failed
	)

	LayoutStepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_step_duration_seconds",
			Help:    "Duration of one layout step in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	LayoutEnergy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_energy",
			Help: "Repulsive energy measured during the last layout step",
		},
	)

	LayoutTemperature = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_temperature",
			Help: "Current cap on how far one node may move per step",
		},
	)

	LayoutEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_edges",
			Help: "Number of edges in the layout graph",
		},
	)

	// Database operation metrics
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	DBOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)

	LayoutSnapshotsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_snapshots_stored",
			Help: "Number of layout snapshots kept in the database",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// API cache metrics
	APICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of API cache hits",
		},
		[]string{"endpoint"},
	)

	APICacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of API cache misses",
		},
		[]string{"endpoint"},
	)

	APICacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_cache_items",
			Help: "Current number of items in API cache",
		},
		[]string{"endpoint"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"}, // collector: tree, snapshots
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)
