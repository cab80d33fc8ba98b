// Package obs carries Context-Fabric's ambient observability stack:
// Prometheus metrics and a structured logger, both initialized once
// per process and threaded into every component that needs them.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge/histogram the core reports.
type Metrics struct {
	NodesLoaded    prometheus.Gauge
	QueriesTotal   prometheus.Counter
	QueryErrors    prometheus.Counter
	PlanLatency    prometheus.Histogram
	ExecLatency    prometheus.Histogram
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	PreloadedBytes prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics instance. Safe to
// call once per process; a second call panics on duplicate
// registration, matching promauto's default behavior.
func NewMetrics() *Metrics {
	return &Metrics{
		NodesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "contextfabric_nodes_loaded",
			Help: "Node count of the currently loaded corpus",
		}),
		QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contextfabric_queries_total",
			Help: "Total SPIN queries executed",
		}),
		QueryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contextfabric_query_errors_total",
			Help: "Total SPIN queries that returned an error",
		}),
		PlanLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "contextfabric_plan_latency_seconds",
			Help: "Time spent choosing a spin order and materializing the plan",
		}),
		ExecLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "contextfabric_exec_latency_seconds",
			Help: "Time spent executing a planned query to completion",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contextfabric_cache_hits_total",
			Help: "Result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contextfabric_cache_misses_total",
			Help: "Result cache misses",
		}),
		PreloadedBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "contextfabric_preloaded_bytes",
			Help: "Bytes copied into RAM by the embedding preload",
		}),
	}
}
