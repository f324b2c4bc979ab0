// Package metrics provides the Prometheus registry reference for the bridge.
// All metrics are defined in their respective packages (cache, client,
// ratelimit, bridge) to maintain modularity and avoid circular dependencies.
//
// This package exposes them over HTTP and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the bridge.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Resolve Metrics (pkg/bridge):
//   - ghbridge_resolves_total{action, outcome} (Counter): Resolves by outcome
//     (cache_hit, remote_ok, upstream_error, transport_error, invalid)
//   - ghbridge_resolve_duration_seconds{outcome} (Histogram): Resolve duration
//   - ghbridge_coalesced_resolves_total (Counter): Resolves that shared an in-flight fetch
//
// Cache Metrics (pkg/cache):
//   - ghbridge_cache_hits_total{layer} (Counter): Cache hits by layer (file, redis)
//   - ghbridge_cache_misses_total{layer} (Counter): Cache misses by layer
//   - ghbridge_cache_evictions_total{layer} (Counter): Expired records removed on read
//   - ghbridge_cache_written_bytes_total{layer} (Counter): Compressed bytes written
//   - ghbridge_cache_errors_total{layer, operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ghbridge_github_rate_limit_remaining (Gauge): Requests remaining in the GitHub window
//   - ghbridge_rate_limit_blocks_total (Counter): Requests refused locally because the quota is spent
//
// Request Metrics (pkg/client):
//   - ghbridge_github_requests_total{action, status} (Counter): GitHub requests by action and HTTP status
//   - ghbridge_github_request_duration_seconds{action} (Histogram): Request duration by action
//   - ghbridge_github_errors_total{class} (Counter): Errors by class (client, server, rate_limited, timeout, dns, connection, tls, canceled, network)
//
// Retry Metrics (pkg/client):
//   - ghbridge_github_retries_total{error_class} (Counter): Retry attempts by error class
//   - ghbridge_github_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ghbridge_github_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ghbridge_resolves_total{outcome="cache_hit"}[5m])) /
//   sum(rate(ghbridge_resolves_total{outcome=~"cache_hit|remote_ok"}[5m]))
//
//   # GitHub Quota
//   ghbridge_github_rate_limit_remaining < 10
//
//   # Transport Error Rate
//   rate(ghbridge_resolves_total{outcome="transport_error"}[5m])
//
//   # P95 GitHub Latency
//   histogram_quantile(0.95, rate(ghbridge_github_request_duration_seconds_bucket[5m]))
