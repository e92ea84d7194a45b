// Package metrics wraps prometheus/client_golang counters and histograms
// for the values EDR's provider wants to expose: request latency, gas used
// per block, and fork-cache hit rate.
//
// Grounded on the teacher's metrics/prometheus_exporter.go for the shape
// (a namespaced exporter wrapping a registry, served over HTTP), adapted to
// delegate to the real prometheus/client_golang library instead of the
// teacher's hand-rolled text-exposition formatter: SPEC_FULL.md's ambient
// stack calls for the ecosystem library here rather than reproducing the
// teacher's from-scratch exposition-format writer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters/histograms for request handling, block
// mining and fork-cache lookups. It is always constructed explicitly by
// the caller — never a package-level global (§9). The provider package
// neither constructs nor updates a Metrics; the caller that builds one
// updates it.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	BlockGasUsed    prometheus.Histogram
	ForkCacheHits   prometheus.Counter
	ForkCacheMisses prometheus.Counter
}

// New creates a Metrics set and registers it against reg. Passing a nil
// Registerer is valid: every metric still updates, it is simply never
// scraped (useful for tests that want real metric objects without a live
// HTTP endpoint).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "JSON-RPC request handling latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total JSON-RPC requests handled, by method and status.",
		}, []string{"method", "status"}),
		BlockGasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_gas_used",
			Help:      "Gas used per mined block.",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 16),
		}),
		ForkCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fork_cache_hits_total",
			Help:      "Fork cache read-through hits.",
		}),
		ForkCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fork_cache_misses_total",
			Help:      "Fork cache read-through misses requiring an RPC fetch.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestDuration, m.RequestTotal, m.BlockGasUsed, m.ForkCacheHits, m.ForkCacheMisses)
	}
	return m
}

// Handler returns an http.Handler serving the registry's metrics in
// Prometheus exposition format, for mounting at /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
