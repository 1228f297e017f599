package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the Prometheus metrics of the service.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Graph editing metrics
	graphOpsTotal      *prometheus.CounterVec
	saveConflictsTotal prometheus.Counter
	storeLatency       *prometheus.HistogramVec

	// Execution streaming metrics
	wsClients       prometheus.Gauge
	pollCyclesTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the service metrics on the given registerer.
// A nil registerer uses the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.graphOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_operations_total",
			Help:      "Total number of graph store operations",
		},
		[]string{"operation", "status"},
	)

	c.saveConflictsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_save_conflicts_total",
			Help:      "Total number of optimistic-concurrency conflicts",
		},
	)

	c.storeLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Graph store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.wsClients = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected execution stream clients",
		},
	)

	c.pollCyclesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_poll_cycles_total",
			Help:      "Total number of execution poll cycles",
		},
	)

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGraphOp records one graph store operation.
func (c *Collector) RecordGraphOp(operation, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.graphOpsTotal.WithLabelValues(operation, status).Inc()
	c.storeLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSaveConflict records one rejected stale write.
func (c *Collector) RecordSaveConflict() {
	if c == nil {
		return
	}
	c.saveConflictsTotal.Inc()
}

// WSClientConnected tracks a new execution stream client.
func (c *Collector) WSClientConnected() {
	if c == nil {
		return
	}
	c.wsClients.Inc()
}

// WSClientDisconnected tracks a departed execution stream client.
func (c *Collector) WSClientDisconnected() {
	if c == nil {
		return
	}
	c.wsClients.Dec()
}

// RecordPollCycle records one completed execution poll cycle.
func (c *Collector) RecordPollCycle() {
	if c == nil {
		return
	}
	c.pollCyclesTotal.Inc()
}
