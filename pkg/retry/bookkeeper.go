package retry

import (
	"sync"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

type counterKey[K comparable] struct {
	key       K
	direction paging.Direction
}

// Bookkeeper tracks retry counts per (key, direction).
type Bookkeeper[K comparable] struct {
	mu     sync.Mutex
	counts map[counterKey[K]]int
}

// NewBookkeeper creates an empty Bookkeeper.
func NewBookkeeper[K comparable]() *Bookkeeper[K] {
	return &Bookkeeper[K]{counts: make(map[counterKey[K]]int)}
}

// Increment bumps the counter and returns the new value.
func (b *Bookkeeper[K]) Increment(key K, d paging.Direction) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := counterKey[K]{key, d}
	b.counts[k]++
	return b.counts[k]
}

// Count returns the current counter value.
func (b *Bookkeeper[K]) Count(key K, d paging.Direction) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[counterKey[K]{key, d}]
}

// Reset clears one counter.
func (b *Bookkeeper[K]) Reset(key K, d paging.Direction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counts, counterKey[K]{key, d})
}

// ResetAll clears every counter.
func (b *Bookkeeper[K]) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.counts)
}
