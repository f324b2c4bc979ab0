package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolve outcomes.
const (
	OutcomeCacheHit       = "cache_hit"
	OutcomeRemoteOK       = "remote_ok"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
	OutcomeInvalid        = "invalid"
)

// Prometheus metrics for resolve operations.
var (
	resolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghbridge_resolves_total",
		Help: "Total resolves by outcome",
	}, []string{"action", "outcome"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghbridge_resolve_duration_seconds",
		Help:    "Resolve duration in seconds by outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"outcome"})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghbridge_coalesced_resolves_total",
		Help: "Resolves that shared an in-flight remote fetch",
	})
)
