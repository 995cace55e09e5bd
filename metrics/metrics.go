// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RouteRequests counts route calculations by outcome (ok, no_path or an
	// error kind).
	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flood_route_requests_total",
		Help: "Route calculations by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flood_route_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
	}, []string{"stage"})

	EdgesRemoved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flood_route_edges_removed",
		Help:    "Road edges removed by hazard zones per request",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	ZonesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flood_route_zones_skipped_total",
		Help: "Malformed hazard zones ignored",
	})

	NetworkCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flood_route_network_cache_hits_total",
		Help: "Road networks served from the cache",
	})

	NetworkCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flood_route_network_cache_misses_total",
		Help: "Road networks fetched from the backing source",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
