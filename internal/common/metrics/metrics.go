// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_request_duration_seconds",
			Help: "Duration of search API requests in seconds",
		},
		[]string{"operation"},
	)

	BackendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_backend_failures_total",
			Help: "Total number of Elasticsearch failures by operation",
		},
		[]string{"operation"},
	)

	APIKeyLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_lookups_total",
			Help: "Total number of API key lookups by source",
		},
		[]string{"source"},
	)
)
