package operation

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Manager holds the ordered operation list. Writers serialize on a mutex;
// readers get an immutable snapshot without locking.
type Manager[Id comparable, K comparable, V any] struct {
	mu  sync.Mutex
	ops atomic.Pointer[[]*Operation[Id, K, V]]
}

// NewManager creates a Manager with the given initial operations.
func NewManager[Id comparable, K comparable, V any](ops ...*Operation[Id, K, V]) *Manager[Id, K, V] {
	m := &Manager[Id, K, V]{}
	initial := slices.Clone(ops)
	m.ops.Store(&initial)
	return m
}

// Get returns the current operations. The slice must not be modified.
func (m *Manager[Id, K, V]) Get() []*Operation[Id, K, V] {
	return *m.ops.Load()
}

// GetWhere returns the operations matching pred, in order.
func (m *Manager[Id, K, V]) GetWhere(pred func(*Operation[Id, K, V]) bool) []*Operation[Id, K, V] {
	var out []*Operation[Id, K, V]
	for _, op := range m.Get() {
		if pred(op) {
			out = append(out, op)
		}
	}
	return out
}

// Add appends op to the end of the list.
func (m *Manager[Id, K, V]) Add(op *Operation[Id, K, V]) {
	m.mutate(func(ops []*Operation[Id, K, V]) []*Operation[Id, K, V] {
		return append(ops, op)
	})
}

// Remove drops op. It reports whether op was present.
func (m *Manager[Id, K, V]) Remove(op *Operation[Id, K, V]) bool {
	removed := 0
	m.mutate(func(ops []*Operation[Id, K, V]) []*Operation[Id, K, V] {
		before := len(ops)
		ops = slices.DeleteFunc(ops, func(o *Operation[Id, K, V]) bool { return o == op })
		removed = before - len(ops)
		return ops
	})
	return removed > 0
}

// RemoveAll drops every operation matching pred and returns how many were removed.
func (m *Manager[Id, K, V]) RemoveAll(pred func(*Operation[Id, K, V]) bool) int {
	removed := 0
	m.mutate(func(ops []*Operation[Id, K, V]) []*Operation[Id, K, V] {
		before := len(ops)
		ops = slices.DeleteFunc(ops, pred)
		removed = before - len(ops)
		return ops
	})
	return removed
}

// Clear removes every operation.
func (m *Manager[Id, K, V]) Clear() {
	m.mutate(func([]*Operation[Id, K, V]) []*Operation[Id, K, V] { return nil })
}

// Len returns the number of operations.
func (m *Manager[Id, K, V]) Len() int {
	return len(m.Get())
}

func (m *Manager[Id, K, V]) mutate(fn func([]*Operation[Id, K, V]) []*Operation[Id, K, V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := fn(slices.Clone(*m.ops.Load()))
	m.ops.Store(&next)
}
