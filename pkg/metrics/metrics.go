// Package metrics provides the centralized Prometheus metrics registry for
// the event-query client. All metrics are defined in their respective
// packages (client, pagination, cache, ratelimit) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the event-query
// client. All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - eventquery_pagination_pages_total (Counter): Pages fetched across pagination calls
//   - eventquery_pagination_rows_fetched_total (Counter): Rows fetched before deduplication
//   - eventquery_pagination_duplicates_total (Counter): Boundary-tie duplicates discarded
//   - eventquery_pagination_stops_total{reason} (Counter): Stop decisions by reason
//   - eventquery_pagination_page_duration_seconds (Histogram): One page's submit-and-poll cycle
//
// Request Metrics (pkg/client):
//   - eventquery_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - eventquery_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - eventquery_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - eventquery_retries_total{error_class} (Counter): Retry attempts by error class
//   - eventquery_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - eventquery_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - eventquery_rate_limit_remaining (Gauge): Request budget left in the current window
//   - eventquery_rate_limit_blocks_total (Counter): Requests blocked at critical budget
//   - eventquery_rate_limit_throttles_total (Counter): Requests throttled at warning budget
//
// Result Cache Metrics (pkg/cache):
//   - eventquery_result_cache_hits_total (Counter): Completed results served from cache
//   - eventquery_result_cache_misses_total (Counter): Cache misses
//   - eventquery_result_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Pages per fetch
//   rate(eventquery_pagination_pages_total[5m])
//
//   # Share of fetches stopped by the duplicate-tail heuristic
//   rate(eventquery_pagination_stops_total{reason="duplicate_tail"}[5m])
//
//   # Request Error Rate
//   rate(eventquery_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(eventquery_request_duration_seconds_bucket[5m]))
//
//   # Rate Limit Status
//   eventquery_rate_limit_remaining < 20
