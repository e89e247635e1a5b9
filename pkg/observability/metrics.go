// Package observability exposes the engine's operational counters.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheyhunter_provider_requests_total",
		Help: "Provider calls made by the aggregator, by provider name.",
	}, []string{"provider"})

	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheyhunter_provider_failures_total",
		Help: "Provider calls that failed or timed out, by provider name.",
	}, []string{"provider"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheyhunter_cache_hits_total",
		Help: "Identity cache lookups that found an entry.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheyhunter_cache_misses_total",
		Help: "Identity cache lookups that found nothing.",
	})

	SnapshotRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheyhunter_snapshot_runs_total",
		Help: "Completed price snapshot passes.",
	})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheyhunter_alerts_triggered_total",
		Help: "Price alerts whose threshold was met.",
	})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
