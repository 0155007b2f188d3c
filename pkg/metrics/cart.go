package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine activity. A nil *CartMetrics is a no-op.
type CartMetrics struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	connErrors     *prometheus.CounterVec
	mergeConflicts prometheus.Counter
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart engine operations by outcome.",
	}, []string{"op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_latency_seconds",
		Help:    "Cart engine operation latency including retries.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})
	connErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_connection_errors_total",
		Help: "Cache errors seen by the retry policy, by classification.",
	}, []string{"kind"})
	mergeConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "merge_conflicts_total",
		Help: "Products present in both carts during guest to user merges.",
	})
	reg.MustRegister(operations, latency, connErrors, mergeConflicts)
	return &CartMetrics{
		operations:     operations,
		latency:        latency,
		connErrors:     connErrors,
		mergeConflicts: mergeConflicts,
	}
}

// ObserveOperation counts one finished operation and records its latency.
func (c *CartMetrics) ObserveOperation(op, outcome string, duration time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op = normalizeLabel(op)
	c.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	c.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// IncConnectionError increments the cache error counter for kind.
func (c *CartMetrics) IncConnectionError(kind string) {
	if c == nil || c.connErrors == nil {
		return
	}
	c.connErrors.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddMergeConflicts adds n overlapping products to the merge conflict counter.
func (c *CartMetrics) AddMergeConflicts(n int) {
	if c == nil || c.mergeConflicts == nil || n <= 0 {
		return
	}
	c.mergeConflicts.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
