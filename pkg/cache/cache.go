package cache

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/observe"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/persistence"
)

// ErrItemNotFound indicates the item is neither in memory nor persisted.
var ErrItemNotFound = errors.New("item not found")

// Config configures a Cache.
type Config[Id comparable] struct {
	// MaxSize is the number of items kept in memory. Zero or negative
	// disables eviction.
	MaxSize int

	// PlaceholderID enables placeholder slots. Nil disables them.
	PlaceholderID *Id
}

// ItemState is the per-item state delivered by ObserveItem.
type ItemState[V any] struct {
	Value   V
	Present bool
}

// Option configures a Cache.
type Option[Id comparable, K comparable, V any] func(*Cache[Id, K, V])

// WithStore sets the persistence layer. Defaults to persistence.Nop.
func WithStore[Id comparable, K comparable, V any](s persistence.Store[Id, K, V]) Option[Id, K, V] {
	return func(c *Cache[Id, K, V]) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger[Id comparable, K comparable, V any](l zerolog.Logger) Option[Id, K, V] {
	return func(c *Cache[Id, K, V]) {
		c.logger = l
	}
}

type record[K comparable, V any] struct {
	value V
	owner *K
}

// Cache is the normalized item/page cache. It is safe for concurrent use.
type Cache[Id comparable, K comparable, V any] struct {
	cfg    Config[Id]
	remote paging.Fetcher[Id, K, V]
	store  persistence.Store[Id, K, V]
	logger zerolog.Logger

	mu        sync.Mutex
	items     map[Id]*record[K, V]
	nodes     map[K]*node[Id, K]
	head      *K
	tail      *K
	inFlight  map[K]struct{}
	gen       uint64
	recency   *simplelru.LRU
	observers map[Id]*observe.Value[ItemState[V]]
}

// New creates a Cache that fetches misses from remote.
func New[Id comparable, K comparable, V any](remote paging.Fetcher[Id, K, V], cfg Config[Id], opts ...Option[Id, K, V]) *Cache[Id, K, V] {
	if remote == nil {
		panic("remote fetcher cannot be nil")
	}
	// Capacity is enforced by TrimToMaxSize, the LRU only tracks recency.
	recency, err := simplelru.NewLRU(math.MaxInt, nil)
	if err != nil {
		panic(err)
	}
	c := &Cache[Id, K, V]{
		cfg:       cfg,
		remote:    remote,
		store:     persistence.NewNop[Id, K, V](),
		logger:    logging.NewLogger("cache"),
		items:     make(map[Id]*record[K, V]),
		nodes:     make(map[K]*node[Id, K]),
		inFlight:  make(map[K]struct{}),
		recency:   recency,
		observers: make(map[Id]*observe.Value[ItemState[V]]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of items held in memory.
func (c *Cache[Id, K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetItem returns the item from memory, falling back to persistence.
func (c *Cache[Id, K, V]) GetItem(ctx context.Context, id Id) (V, error) {
	c.mu.Lock()
	if rec, ok := c.items[id]; ok {
		v := rec.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.store.GetItem(ctx, id)
	if err != nil {
		c.absorb("get_item", err)
		var zero V
		return zero, ErrItemNotFound
	}
	return v, nil
}

// SaveItem stores the item in memory and persistence. An item already
// owned by a page keeps its position.
func (c *Cache[Id, K, V]) SaveItem(ctx context.Context, id Id, value V) {
	c.mu.Lock()
	var owner *K
	if rec, ok := c.items[id]; ok {
		owner = rec.owner
	}
	c.saveItemLocked(id, value, owner)
	c.trimLocked()
	c.mu.Unlock()

	c.absorb("save_item", c.store.SaveItem(ctx, id, value))
}

// RemoveItem removes the item from memory and persistence. The owning page
// loses the id and is removed once empty.
func (c *Cache[Id, K, V]) RemoveItem(ctx context.Context, id Id) {
	c.mu.Lock()
	emptied := c.removeItemLocked(id)
	c.mu.Unlock()

	c.absorb("remove_item", c.store.RemoveItem(ctx, id))
	if emptied != nil {
		c.absorb("remove_page", c.store.RemovePage(ctx, paging.LoadParams[K]{Key: *emptied}))
	}
}

// QueryItems returns the items matching pred: memory items in page order
// first, then persisted items not held in memory.
func (c *Cache[Id, K, V]) QueryItems(ctx context.Context, pred func(paging.Item[Id, V]) bool) []paging.Item[Id, V] {
	c.mu.Lock()
	var out []paging.Item[Id, V]
	seen := make(map[Id]struct{}, len(c.items))
	c.eachNodeLocked(func(n *node[Id, K]) {
		for _, e := range n.entries {
			if e.Placeholder {
				continue
			}
			seen[e.ID] = struct{}{}
			it := paging.Item[Id, V]{ID: e.ID, Value: c.items[e.ID].value}
			if pred == nil || pred(it) {
				out = append(out, it)
			}
		}
	})
	for _, k := range c.recency.Keys() {
		id := k.(Id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		it := paging.Item[Id, V]{ID: id, Value: c.items[id].value}
		if pred == nil || pred(it) {
			out = append(out, it)
		}
	}
	c.mu.Unlock()

	persisted, err := c.store.QueryItems(ctx, pred)
	if err != nil {
		c.absorb("query", err)
		return out
	}
	for _, it := range persisted {
		if _, ok := seen[it.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// ObserveItem streams the in-memory state of id until ctx is done. The
// current state is delivered first.
func (c *Cache[Id, K, V]) ObserveItem(ctx context.Context, id Id) <-chan ItemState[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.observers[id]
	if !ok {
		var initial ItemState[V]
		if rec, ok := c.items[id]; ok {
			initial = ItemState[V]{Value: rec.value, Present: true}
		}
		obs = observe.NewValue(initial)
		c.observers[id] = obs
	}
	return obs.Subscribe(ctx)
}

// AppendPage stores a loaded page at the tail of the retrieval order.
func (c *Cache[Id, K, V]) AppendPage(ctx context.Context, params paging.LoadParams[K], data paging.Data[Id, K, V]) {
	c.putPage(ctx, params.Key, data, paging.Append)
}

// PrependPage stores a loaded page at the head of the retrieval order.
func (c *Cache[Id, K, V]) PrependPage(ctx context.Context, params paging.LoadParams[K], data paging.Data[Id, K, V]) {
	c.putPage(ctx, params.Key, data, paging.Prepend)
}

func (c *Cache[Id, K, V]) putPage(ctx context.Context, key K, data paging.Data[Id, K, V], d paging.Direction) {
	c.mu.Lock()
	c.putPageLocked(key, data, d)
	c.mu.Unlock()

	for _, it := range data.Items {
		c.absorb("save_item", c.store.SaveItem(ctx, it.ID, it.Value))
	}
	params := paging.LoadParams[K]{Key: key, Size: len(data.Items), Direction: d}
	c.absorb("save_page", c.store.SavePage(ctx, params, persistenceRecord(key, data)))
}

func persistenceRecord[Id comparable, K comparable, V any](key K, data paging.Data[Id, K, V]) persistence.Page[Id, K] {
	return persistence.Page[Id, K]{Key: key, IDs: data.IDs(), PrevKey: data.PrevKey, NextKey: data.NextKey}
}

func (c *Cache[Id, K, V]) putPageLocked(key K, data paging.Data[Id, K, V], d paging.Direction) {
	n, ok := c.nodes[key]
	if !ok {
		n = &node[Id, K]{key: key}
		c.nodes[key] = n
		c.linkLocked(n, d)
	}
	// Ids leaving the page are released before the new ones are owned.
	for _, e := range n.entries {
		if e.Placeholder {
			continue
		}
		if rec, ok := c.items[e.ID]; ok && rec.owner != nil && *rec.owner == key {
			rec.owner = nil
		}
	}
	n.placeholder = false
	n.entries = paging.EntriesOfItems(data.Items)
	n.prevKey = data.PrevKey
	n.nextKey = data.NextKey

	owner := paging.Ptr(key)
	for _, it := range data.Items {
		c.saveItemLocked(it.ID, it.Value, owner)
	}
	c.trimLocked()
}

// InsertPlaceholders seeds params.Size placeholder slots for params.Key.
// It reports false when placeholders are disabled or the page is cached.
func (c *Cache[Id, K, V]) InsertPlaceholders(params paging.LoadParams[K], d paging.Direction) bool {
	if c.cfg.PlaceholderID == nil || params.Size <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[params.Key]; ok {
		return false
	}
	n := &node[Id, K]{key: params.Key, placeholder: true}
	n.entries = make([]paging.Entry[Id], params.Size)
	for i := range n.entries {
		n.entries[i] = paging.Entry[Id]{ID: *c.cfg.PlaceholderID, Placeholder: true}
	}
	c.nodes[params.Key] = n
	c.linkLocked(n, d)
	return true
}

// RemovePage removes the page and its items from memory and persistence.
func (c *Cache[Id, K, V]) RemovePage(ctx context.Context, key K) {
	c.mu.Lock()
	n, ok := c.nodes[key]
	if !ok {
		c.mu.Unlock()
		c.absorb("remove_page", c.store.RemovePage(ctx, paging.LoadParams[K]{Key: key}))
		return
	}
	placeholder := n.placeholder
	ids := paging.IDsOf(n.entries)
	c.dropNodeLocked(n)
	for _, id := range ids {
		c.dropItemLocked(id)
	}
	c.mu.Unlock()

	if placeholder {
		return
	}
	for _, id := range ids {
		c.absorb("remove_item", c.store.RemoveItem(ctx, id))
	}
	c.absorb("remove_page", c.store.RemovePage(ctx, paging.LoadParams[K]{Key: key}))
}

// RemovePlaceholders drops the page for key if it only holds placeholders.
func (c *Cache[Id, K, V]) RemovePlaceholders(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key]
	if !ok || !n.placeholder {
		return false
	}
	c.dropNodeLocked(n)
	return true
}

// IsCached reports whether a loaded (non-placeholder) page for key is in memory.
func (c *Cache[Id, K, V]) IsCached(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key]
	return ok && !n.placeholder
}

// IsInFlight reports whether a load for key is outstanding.
func (c *Cache[Id, K, V]) IsInFlight(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

// IsInDatabase reports whether the page is persisted.
func (c *Cache[Id, K, V]) IsInDatabase(ctx context.Context, params paging.LoadParams[K]) bool {
	ok, err := c.store.PageExists(ctx, params)
	if err != nil {
		c.absorb("exists", err)
		return false
	}
	return ok
}

// TrimToMaxSize evicts the least recently inserted items beyond MaxSize and
// returns how many were evicted. Saves trim automatically.
func (c *Cache[Id, K, V]) TrimToMaxSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trimLocked()
}

// Snapshot returns all cached entries in retrieval order, placeholders
// included.
func (c *Cache[Id, K, V]) Snapshot() []paging.Item[Id, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []paging.Item[Id, V]
	c.eachNodeLocked(func(n *node[Id, K]) {
		out = append(out, c.itemsOfLocked(n)...)
	})
	return out
}

// Clear drops everything held in memory. Persistence is untouched and loads
// still in flight will not repopulate the cache.
func (c *Cache[Id, K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	CacheItems.Sub(float64(len(c.items)))
	for id, obs := range c.observers {
		obs.Store(ItemState[V]{})
		if obs.Subscribers() == 0 {
			delete(c.observers, id)
		}
	}
	c.items = make(map[Id]*record[K, V])
	c.nodes = make(map[K]*node[Id, K])
	c.head, c.tail = nil, nil
	c.inFlight = make(map[K]struct{})
	c.recency.Purge()
	c.gen++
}

func (c *Cache[Id, K, V]) saveItemLocked(id Id, value V, owner *K) {
	rec, ok := c.items[id]
	if ok {
		if rec.owner != nil && (owner == nil || *rec.owner != *owner) {
			c.detachLocked(id, *rec.owner)
		}
		rec.value = value
		rec.owner = owner
	} else {
		c.items[id] = &record[K, V]{value: value, owner: owner}
		CacheItems.Inc()
	}
	c.recency.Add(id, struct{}{})
	if obs, ok := c.observers[id]; ok {
		obs.Store(ItemState[V]{Value: value, Present: true})
	}
}

// removeItemLocked removes id and returns the key of a page it emptied.
func (c *Cache[Id, K, V]) removeItemLocked(id Id) *K {
	rec, ok := c.items[id]
	if !ok {
		return nil
	}
	var emptied *K
	if rec.owner != nil {
		emptied = c.detachLocked(id, *rec.owner)
	}
	c.dropItemLocked(id)
	return emptied
}

// dropItemLocked forgets id without touching page entries.
func (c *Cache[Id, K, V]) dropItemLocked(id Id) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	c.recency.Remove(id)
	CacheItems.Dec()
	if obs, ok := c.observers[id]; ok {
		obs.Store(ItemState[V]{})
		if obs.Subscribers() == 0 {
			delete(c.observers, id)
		}
	}
}

// detachLocked removes id from the entries of page key. A page left without
// entries is dropped and its key returned.
func (c *Cache[Id, K, V]) detachLocked(id Id, key K) *K {
	n, ok := c.nodes[key]
	if !ok {
		return nil
	}
	n.entries = slices.DeleteFunc(n.entries, func(e paging.Entry[Id]) bool {
		return !e.Placeholder && e.ID == id
	})
	if len(n.entries) > 0 {
		return nil
	}
	c.dropNodeLocked(n)
	return paging.Ptr(key)
}

func (c *Cache[Id, K, V]) trimLocked() int {
	if c.cfg.MaxSize <= 0 {
		return 0
	}
	evicted := 0
	for c.recency.Len() > c.cfg.MaxSize {
		k, _, ok := c.recency.RemoveOldest()
		if !ok {
			break
		}
		id := k.(Id)
		if rec, ok := c.items[id]; ok && rec.owner != nil {
			c.detachLocked(id, *rec.owner)
		}
		c.dropItemLocked(id)
		CacheEvictions.Inc()
		evicted++
	}
	if evicted > 0 {
		c.logger.Debug().Int("evicted", evicted).Int("max_size", c.cfg.MaxSize).Msg("Trimmed cache")
	}
	return evicted
}

func (c *Cache[Id, K, V]) itemsOfLocked(n *node[Id, K]) []paging.Item[Id, V] {
	out := make([]paging.Item[Id, V], 0, len(n.entries))
	for _, e := range n.entries {
		if e.Placeholder {
			out = append(out, paging.Item[Id, V]{ID: e.ID, Placeholder: true})
			continue
		}
		if rec, ok := c.items[e.ID]; ok {
			out = append(out, paging.Item[Id, V]{ID: e.ID, Value: rec.value})
		}
	}
	return out
}

// absorb logs and counts persistence failures. Misses and unconfigured
// persistence are not failures.
func (c *Cache[Id, K, V]) absorb(op string, err error) {
	if err == nil || persistence.IsSkipped(err) || persistence.IsNotFound(err) {
		return
	}
	CacheErrors.WithLabelValues(op).Inc()
	c.logger.Warn().Err(err).Str("operation", op).Msg("Persistence failure absorbed")
}
