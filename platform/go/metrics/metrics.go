// Package metrics holds the Prometheus instruments shared by the tenant
// resolution and query routing layers. All collectors are registered with the
// default registry, so mounting promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResolutionCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_cache_hits_total",
			Help: "Resolution cache lookups served from memory.",
		}, []string{"kind"})

	ResolutionCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_cache_misses_total",
			Help: "Resolution cache lookups that fell through to the directory.",
		}, []string{"kind"})

	ResolutionCacheExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_resolution_cache_expired_total",
			Help: "Cached entries discarded because they outlived the TTL.",
		})

	ResolutionCacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_cache_invalidations_total",
			Help: "Explicit invalidations by origin (local or bus).",
		}, []string{"origin"})

	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolutions_total",
			Help: "Request tenant resolutions by source and outcome.",
		}, []string{"source", "outcome"})

	PoolAcquireSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_pool_acquire_seconds",
			Help:    "Time spent waiting for a pooled connection.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		})

	PoolExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "db_pool_exhausted_total",
			Help: "Connection acquisitions that timed out.",
		})

	NamespaceBindFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "db_namespace_bind_failures_total",
			Help: "Namespace binding statements that failed after a successful acquire.",
		})

	ConnectionsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_connections_discarded_total",
			Help: "Connections destroyed instead of being returned to the pool.",
		}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ResolutionCacheHits,
		ResolutionCacheMisses,
		ResolutionCacheExpired,
		ResolutionCacheInvalidations,
		Resolutions,
		PoolAcquireSeconds,
		PoolExhausted,
		NamespaceBindFailures,
		ConnectionsDiscarded,
	)
}
