// Package cache provides the normalized item/page cache of the paging engine.
//
// Items live once, keyed by id. Pages only hold the ordered ids of their
// items and are linked in retrieval order through an arena of nodes keyed by
// page key: appended pages join the tail, prepended pages the head,
// independent of how the keys themselves compare.
//
// Features:
//
// - Cascading removal (page → items, last item → page)
// - Placeholder slots for in-flight pages when a placeholder id is configured
// - Eviction of the least recently inserted items beyond MaxSize
// - Optional persistence (Redis, Badger, ...) with absorbed failures
// - A load pipeline honouring CacheFirst, SkipCache and LocalOnly
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	c := cache.New[int, int, Post](remote, cache.Config[int]{MaxSize: 500},
//		cache.WithStore[int, int, Post](store))
//
//	res := c.Load(ctx, paging.LoadParams[int]{Key: 0, Size: 20})
//	switch res.Status {
//	case cache.StatusSuccess:
//		// res.Data.Items, res.Data.NextKey, res.Data.Origin
//	case cache.StatusSkipped:
//		// another load for the key is in flight
//	case cache.StatusError:
//		// res.Err wraps paging.ErrTransientFetch
//	}
//
// # Metrics
//
//   - feedpager_cache_hits_total{layer="memory|database"} - Cache hits
//   - feedpager_cache_misses_total - Loads that went to the remote source
//   - feedpager_cache_evictions_total - Items evicted beyond MaxSize
//   - feedpager_cache_items - Items currently held in memory
//   - feedpager_cache_inflight_skips_total - Loads skipped because the key was in flight
//   - feedpager_cache_errors_total{operation} - Absorbed persistence errors
package cache
