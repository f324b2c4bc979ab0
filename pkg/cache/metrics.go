package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store layers used as metric labels.
const (
	LayerFile  = "file"
	LayerRedis = "redis"
)

var (
	// CacheHits tracks fresh records served, by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookups that found no usable record, by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer"},
	)

	// CacheEvictions tracks expired records removed on read
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_cache_evictions_total",
			Help: "Total number of expired records evicted on lookup",
		},
		[]string{"layer"},
	)

	// CacheWrittenBytes tracks compressed bytes written
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_cache_written_bytes_total",
			Help: "Total compressed bytes written to the cache",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"layer", "operation"}, // "get", "put", "delete", "decode"
	)
)
