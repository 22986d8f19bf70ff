package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for result cache operations.
var (
	// CacheHits counts result cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_result_cache_hits_total",
		Help: "Total result cache hits",
	})

	// CacheMisses counts result cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventquery_result_cache_misses_total",
		Help: "Total result cache misses",
	})

	// CacheErrors counts result cache operation errors by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventquery_result_cache_errors_total",
		Help: "Total result cache operation errors",
	}, []string{"operation"})
)
