/*

This file contains the Prometheus instrumentation. All collectors hang off
one private registry rather than the package-global default so tests can
build and drop registries freely.

*/

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dexlens/poolscout/internal/logger"
)

var metricsLogger = logger.GetForComponent("metrics")

// Registry bundles every collector the process exposes. A nil *Registry is
// valid: all recording methods become no-ops, so components can run
// uninstrumented in tests.
type Registry struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	sourceFailures  *prometheus.CounterVec
	cachedPools     *prometheus.GaugeVec
	cacheAverageApr *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
}

// NewRegistry creates the registry with all collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolscout_refresh_total",
				Help: "Cache refresh attempts by tier and result",
			},
			[]string{"tier", "result"},
		),

		refreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolscout_refresh_duration_seconds",
				Help:    "Cache refresh duration in seconds by tier",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"tier"},
		),

		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolscout_source_failures_total",
				Help: "Upstream source failures by source name",
			},
			[]string{"source"},
		),

		cachedPools: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poolscout_cached_pools",
				Help: "Pools currently held in the cache by tier",
			},
			[]string{"tier"},
		),

		cacheAverageApr: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poolscout_cache_average_apr",
				Help: "Average APR of the cached pool set by tier",
			},
			[]string{"tier"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolscout_http_requests_total",
				Help: "HTTP requests served by path, method, and status",
			},
			[]string{"path", "method", "status"},
		),
	}

	r.registry.MustRegister(
		r.refreshTotal,
		r.refreshDuration,
		r.sourceFailures,
		r.cachedPools,
		r.cacheAverageApr,
		r.httpRequests,
	)

	metricsLogger.Info().Msg("Prometheus metrics registry initialized")
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRefresh counts one refresh attempt; result is "success" or
// "failure".
func (r *Registry) RecordRefresh(tier string, result string) {
	if r == nil {
		return
	}
	r.refreshTotal.WithLabelValues(tier, result).Inc()
}

// ObserveRefreshDuration records how long a refresh took.
func (r *Registry) ObserveRefreshDuration(tier string, seconds float64) {
	if r == nil {
		return
	}
	r.refreshDuration.WithLabelValues(tier).Observe(seconds)
}

// RecordSourceFailure counts one upstream source failure.
func (r *Registry) RecordSourceFailure(source string) {
	if r == nil {
		return
	}
	r.sourceFailures.WithLabelValues(source).Inc()
}

// SetCachedPools tracks the cached pool count for a tier.
func (r *Registry) SetCachedPools(tier string, count float64) {
	if r == nil {
		return
	}
	r.cachedPools.WithLabelValues(tier).Set(count)
}

// SetCacheAverageApr tracks the cached average APR for a tier.
func (r *Registry) SetCacheAverageApr(tier string, apr float64) {
	if r == nil {
		return
	}
	r.cacheAverageApr.WithLabelValues(tier).Set(apr)
}

// RecordHTTPRequest counts one served request.
func (r *Registry) RecordHTTPRequest(path string, method string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}
