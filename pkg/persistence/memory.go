package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Memory is a process-local Store.
type Memory[Id comparable, K comparable, V any] struct {
	mu       sync.RWMutex
	items    map[Id]V
	order    []Id
	pages    map[K]Page[Id, K]
	watchers *watchers[Id, V]
}

// NewMemory creates an empty Memory store.
func NewMemory[Id comparable, K comparable, V any]() *Memory[Id, K, V] {
	return &Memory[Id, K, V]{
		items:    make(map[Id]V),
		pages:    make(map[K]Page[Id, K]),
		watchers: newWatchers[Id, V](),
	}
}

// GetItem implements ItemStore.
func (m *Memory[Id, K, V]) GetItem(_ context.Context, id Id) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[id]
	if !ok {
		return v, ErrNotFound
	}
	return v, nil
}

// SaveItem implements ItemStore.
func (m *Memory[Id, K, V]) SaveItem(_ context.Context, id Id, value V) error {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.order = append(m.order, id)
	}
	m.items[id] = value
	m.mu.Unlock()

	m.watchers.notify(id, value)
	return nil
}

// RemoveItem implements ItemStore.
func (m *Memory[Id, K, V]) RemoveItem(_ context.Context, id Id) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; ok {
		delete(m.items, id)
		m.order = slices.DeleteFunc(m.order, func(o Id) bool { return o == id })
	}
	return nil
}

// QueryItems implements ItemStore. Results follow insertion order.
func (m *Memory[Id, K, V]) QueryItems(_ context.Context, match func(paging.Item[Id, V]) bool) ([]paging.Item[Id, V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []paging.Item[Id, V]
	for _, id := range m.order {
		it := paging.Item[Id, V]{ID: id, Value: m.items[id]}
		if match == nil || match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// ObserveItem implements ItemStore.
func (m *Memory[Id, K, V]) ObserveItem(ctx context.Context, id Id) (<-chan V, error) {
	return m.watchers.watch(ctx, id), nil
}

// GetPage implements PageStore.
func (m *Memory[Id, K, V]) GetPage(_ context.Context, params paging.LoadParams[K]) (Page[Id, K], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[params.Key]
	if !ok {
		return p, ErrNotFound
	}
	p.IDs = slices.Clone(p.IDs)
	return p, nil
}

// SavePage implements PageStore.
func (m *Memory[Id, K, V]) SavePage(_ context.Context, params paging.LoadParams[K], page Page[Id, K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	page.IDs = slices.Clone(page.IDs)
	m.pages[params.Key] = page
	return nil
}

// RemovePage implements PageStore.
func (m *Memory[Id, K, V]) RemovePage(_ context.Context, params paging.LoadParams[K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, params.Key)
	return nil
}

// PageExists implements PageStore.
func (m *Memory[Id, K, V]) PageExists(_ context.Context, params paging.LoadParams[K]) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pages[params.Key]
	return ok, nil
}
