// Package fetching tracks how far the consumer has scrolled and how far the
// engine has loaded, and decides from that whether to prefetch more.
package fetching

import (
	"context"

	"github.com/Sternrassler/feedpager/pkg/observe"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

// State holds monotonic accumulators. A nil pointer means "not seen yet".
// Max fields never decrease and min fields never increase.
type State[Id comparable, K comparable] struct {
	MinItemAccessedSoFar *Id
	MaxItemAccessedSoFar *Id
	MinItemLoadedSoFar   *Id
	MaxItemLoadedSoFar   *Id
	MinRequestSoFar      *K
	MaxRequestSoFar      *K

	// Version increases on every change.
	Version uint64
}

// Holder owns the fetching state.
type Holder[Id comparable, K comparable] struct {
	ids   paging.Ordering[Id]
	keys  paging.Ordering[K]
	value *observe.Value[State[Id, K]]
}

// NewHolder creates a Holder with an empty state.
func NewHolder[Id comparable, K comparable](ids paging.Ordering[Id], keys paging.Ordering[K]) *Holder[Id, K] {
	return &Holder[Id, K]{
		ids:   ids,
		keys:  keys,
		value: observe.NewValue(State[Id, K]{}),
	}
}

// State returns the current state without locking.
func (h *Holder[Id, K]) State() State[Id, K] {
	return h.value.Load()
}

// Subscribe streams state changes until ctx is done.
func (h *Holder[Id, K]) Subscribe(ctx context.Context) <-chan State[Id, K] {
	return h.value.Subscribe(ctx)
}

// UpdateAccessed records that the consumer reached id.
func (h *Holder[Id, K]) UpdateAccessed(id Id) State[Id, K] {
	return h.value.Update(func(s State[Id, K]) State[Id, K] {
		minA, changedMin := extend(h.ids, s.MinItemAccessedSoFar, id, -1)
		maxA, changedMax := extend(h.ids, s.MaxItemAccessedSoFar, id, 1)
		if !changedMin && !changedMax {
			return s
		}
		s.MinItemAccessedSoFar, s.MaxItemAccessedSoFar = minA, maxA
		s.Version++
		return s
	})
}

// UpdateLoaded records freshly loaded ids.
func (h *Holder[Id, K]) UpdateLoaded(ids []Id) State[Id, K] {
	if len(ids) == 0 {
		return h.State()
	}
	return h.value.Update(func(s State[Id, K]) State[Id, K] {
		changed := false
		for _, id := range ids {
			var c1, c2 bool
			s.MinItemLoadedSoFar, c1 = extend(h.ids, s.MinItemLoadedSoFar, id, -1)
			s.MaxItemLoadedSoFar, c2 = extend(h.ids, s.MaxItemLoadedSoFar, id, 1)
			changed = changed || c1 || c2
		}
		if changed {
			s.Version++
		}
		return s
	})
}

// UpdateRequested records a requested key.
func (h *Holder[Id, K]) UpdateRequested(key K) State[Id, K] {
	return h.value.Update(func(s State[Id, K]) State[Id, K] {
		minR, c1 := extend(h.keys, s.MinRequestSoFar, key, -1)
		maxR, c2 := extend(h.keys, s.MaxRequestSoFar, key, 1)
		if !c1 && !c2 {
			return s
		}
		s.MinRequestSoFar, s.MaxRequestSoFar = minR, maxR
		s.Version++
		return s
	})
}

// Reset clears every accumulator. Only invalidation calls this.
func (h *Holder[Id, K]) Reset() {
	h.value.Update(func(s State[Id, K]) State[Id, K] {
		return State[Id, K]{Version: s.Version + 1}
	})
}

// extend moves the extremum cur towards v when v lies beyond it in
// direction sign (-1 = min, 1 = max).
func extend[T any](ord paging.Ordering[T], cur *T, v T, sign int) (*T, bool) {
	if cur == nil || ord.Compare(v, *cur)*sign > 0 {
		return &v, true
	}
	return cur, false
}
