package persistence

import (
	"context"
	"sync"
)

// watchers fans saved values out to per-id subscribers with latest-wins
// delivery.
type watchers[Id comparable, V any] struct {
	mu   sync.Mutex
	subs map[Id]map[chan V]struct{}
}

func newWatchers[Id comparable, V any]() *watchers[Id, V] {
	return &watchers[Id, V]{subs: make(map[Id]map[chan V]struct{})}
}

func (w *watchers[Id, V]) watch(ctx context.Context, id Id) <-chan V {
	ch := make(chan V, 1)

	w.mu.Lock()
	if w.subs[id] == nil {
		w.subs[id] = make(map[chan V]struct{})
	}
	w.subs[id][ch] = struct{}{}
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.subs[id], ch)
		if len(w.subs[id]) == 0 {
			delete(w.subs, id)
		}
		close(ch)
		w.mu.Unlock()
	}()
	return ch
}

func (w *watchers[Id, V]) notify(id Id, v V) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[id] {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
