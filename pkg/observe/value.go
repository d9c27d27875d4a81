// Package observe provides a "latest value plus change notification"
// primitive. Readers get the current value lock-free; subscribers receive
// every committed value with latest-wins delivery: a slow subscriber skips
// intermediate values but always ends up with the newest one.
package observe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Value holds the latest value of T and notifies subscribers on change.
type Value[T any] struct {
	cur atomic.Pointer[T]

	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	v := &Value[T]{subs: make(map[uint64]chan T)}
	v.cur.Store(&initial)
	return v
}

// Load returns the latest value without locking.
func (v *Value[T]) Load() T {
	return *v.cur.Load()
}

// Store publishes x.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publishLocked(x)
}

// Update applies fn to the latest value and publishes the result as one
// atomic step. Concurrent Updates never observe a stale value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := fn(*v.cur.Load())
	v.publishLocked(next)
	return next
}

func (v *Value[T]) publishLocked(x T) {
	v.cur.Store(&x)
	for _, ch := range v.subs {
		// mailbox of one: replace an unread value
		select {
		case <-ch:
		default:
		}
		ch <- x
	}
}

// Subscribe returns a channel that first yields the current value and then
// every later one (latest-wins). The channel is closed when ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- *v.cur.Load()
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, id)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of active subscribers.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}
