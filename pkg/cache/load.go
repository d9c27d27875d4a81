package cache

import (
	"context"
	"fmt"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Status is the outcome of a Load.
type Status int

const (
	// StatusSuccess carries a page in LoadResult.Data.
	StatusSuccess Status = iota

	// StatusEmpty means LocalOnly found nothing.
	StatusEmpty

	// StatusSkipped means the load was not performed. Err holds the reason
	// (paging.ErrAlreadyInFlight).
	StatusSkipped

	// StatusError means the remote fetch failed. Err wraps
	// paging.ErrTransientFetch and the fetcher's error.
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	case StatusSkipped:
		return "skipped"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LoadResult is the outcome of Load.
type LoadResult[Id comparable, K comparable, V any] struct {
	Status Status
	Data   paging.Data[Id, K, V]
	Err    error
}

// Load resolves params according to params.Strategy:
//
//   - CacheFirst: memory, then persistence, then the remote source
//   - SkipCache: the remote source
//   - LocalOnly: memory, then persistence
//
// A key that is already in flight is skipped. Loaded pages are linked at the
// tail for Append and at the head for Prepend.
func (c *Cache[Id, K, V]) Load(ctx context.Context, params paging.LoadParams[K]) LoadResult[Id, K, V] {
	log := c.logger.With().Str("params", params.String()).Logger()

	c.mu.Lock()
	if _, ok := c.inFlight[params.Key]; ok {
		c.mu.Unlock()
		CacheInFlightSkips.Inc()
		log.Debug().Msg("Load skipped, key in flight")
		return LoadResult[Id, K, V]{Status: StatusSkipped, Err: paging.ErrAlreadyInFlight}
	}
	if params.Strategy != paging.SkipCache {
		if n, ok := c.nodes[params.Key]; ok && !n.placeholder {
			data := paging.Data[Id, K, V]{
				Items:   c.itemsOfLocked(n),
				PrevKey: n.prevKey,
				NextKey: n.nextKey,
				Origin:  paging.OriginMemoryCache,
			}
			c.mu.Unlock()
			CacheHits.WithLabelValues("memory").Inc()
			log.Debug().Int("items", len(data.Items)).Msg("Memory cache hit")
			return LoadResult[Id, K, V]{Status: StatusSuccess, Data: data}
		}
	}
	c.inFlight[params.Key] = struct{}{}
	gen := c.gen
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.gen == gen {
			delete(c.inFlight, params.Key)
		}
		c.mu.Unlock()
	}()

	if params.Strategy != paging.SkipCache {
		if data, ok := c.loadPersisted(ctx, params); ok {
			c.commit(gen, params, data)
			CacheHits.WithLabelValues("database").Inc()
			log.Debug().Int("items", len(data.Items)).Msg("Database hit")
			return LoadResult[Id, K, V]{Status: StatusSuccess, Data: data}
		}
		if params.Strategy == paging.LocalOnly {
			log.Debug().Msg("Local load found nothing")
			return LoadResult[Id, K, V]{Status: StatusEmpty, Err: paging.ErrEmptyResult}
		}
	}

	CacheMisses.Inc()
	data, err := c.remote.Fetch(ctx, params)
	if err != nil {
		log.Debug().Err(err).Msg("Remote fetch failed")
		return LoadResult[Id, K, V]{Status: StatusError, Err: fmt.Errorf("%w: %w", paging.ErrTransientFetch, err)}
	}
	data.Origin = paging.OriginNetwork
	if c.commit(gen, params, data) {
		for _, it := range data.Items {
			c.absorb("save_item", c.store.SaveItem(ctx, it.ID, it.Value))
		}
		page := persistenceRecord(params.Key, data)
		c.absorb("save_page", c.store.SavePage(ctx, params, page))
	}
	log.Debug().Int("items", len(data.Items)).Msg("Remote fetch succeeded")
	return LoadResult[Id, K, V]{Status: StatusSuccess, Data: data}
}

// commit links data into memory unless the cache was cleared since the load
// started.
func (c *Cache[Id, K, V]) commit(gen uint64, params paging.LoadParams[K], data paging.Data[Id, K, V]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.putPageLocked(params.Key, data, params.Direction)
	return true
}

// loadPersisted rehydrates a page from persistence. A page with any item
// missing counts as a miss.
func (c *Cache[Id, K, V]) loadPersisted(ctx context.Context, params paging.LoadParams[K]) (paging.Data[Id, K, V], bool) {
	page, err := c.store.GetPage(ctx, params)
	if err != nil {
		c.absorb("get_page", err)
		return paging.Data[Id, K, V]{}, false
	}
	items := make([]paging.Item[Id, V], 0, len(page.IDs))
	for _, id := range page.IDs {
		v, err := c.store.GetItem(ctx, id)
		if err != nil {
			c.absorb("get_item", err)
			return paging.Data[Id, K, V]{}, false
		}
		items = append(items, paging.Item[Id, V]{ID: id, Value: v})
	}
	return paging.Data[Id, K, V]{
		Items:   items,
		PrevKey: page.PrevKey,
		NextKey: page.NextKey,
		Origin:  paging.OriginDatabase,
	}, true
}
