package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, database)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpager_cache_hits_total",
			Help: "Total number of page cache hits",
		},
		[]string{"layer"}, // "memory", "database"
	)

	// CacheMisses tracks loads served by the remote source
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedpager_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// CacheEvictions tracks items evicted beyond MaxSize
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedpager_cache_evictions_total",
			Help: "Total number of items evicted from memory",
		},
	)

	// CacheItems tracks items currently held in memory
	CacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedpager_cache_items",
			Help: "Current number of items held in memory",
		},
	)

	// CacheInFlightSkips tracks loads skipped due to an in-flight load of the same key
	CacheInFlightSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedpager_cache_inflight_skips_total",
			Help: "Total number of loads skipped because the key was already in flight",
		},
	)

	// CacheErrors tracks absorbed persistence errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpager_cache_errors_total",
			Help: "Total number of absorbed persistence errors",
		},
		[]string{"operation"}, // "get_item", "save_item", "remove_item", "query", "get_page", "save_page", "remove_page", "exists"
	)
)
