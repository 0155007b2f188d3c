package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolSnapshot is the subset of connection pool counters exported as metrics.
type PoolSnapshot struct {
	TotalConns uint32
	IdleConns  uint32
	Timeouts   uint32
}

// RegisterPoolStats exposes pool gauges that read stats on every scrape.
func RegisterPoolStats(reg prometheus.Registerer, stats func() PoolSnapshot) {
	if reg == nil || stats == nil {
		return
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "redis_pool_total_conns",
			Help: "Connections currently held by the cache pool.",
		}, func() float64 { return float64(stats().TotalConns) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "redis_pool_idle_conns",
			Help: "Idle connections in the cache pool.",
		}, func() float64 { return float64(stats().IdleConns) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "redis_pool_timeouts_total",
			Help: "Times a caller waited for a pooled connection and gave up.",
		}, func() float64 { return float64(stats().Timeouts) }),
	)
}
