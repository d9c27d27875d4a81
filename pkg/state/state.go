// Package state owns the observable PagingState: the visible id sequence and
// the per-direction load states.
package state

import (
	"context"
	"slices"

	"github.com/Sternrassler/feedpager/pkg/observe"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Manager applies transitions to the PagingState. Every transition is one
// atomic read-modify-write and publishes an immutable value.
type Manager[Id comparable] struct {
	placeholder *Id
	value       *observe.Value[paging.PagingState[Id]]
}

// NewManager creates a Manager. placeholderID is the id used for
// placeholder entries; nil disables placeholder transitions.
func NewManager[Id comparable](placeholderID *Id) *Manager[Id] {
	return &Manager[Id]{
		placeholder: placeholderID,
		value:       observe.NewValue(initial[Id]()),
	}
}

func initial[Id comparable]() paging.PagingState[Id] {
	return paging.PagingState[Id]{
		Append:  paging.NotLoadingState(false),
		Prepend: paging.NotLoadingState(false),
	}
}

// State returns the latest state.
func (m *Manager[Id]) State() paging.PagingState[Id] {
	return m.value.Load()
}

// Subscribe streams states until ctx is done, starting with the current one.
func (m *Manager[Id]) Subscribe(ctx context.Context) <-chan paging.PagingState[Id] {
	return m.value.Subscribe(ctx)
}

func (m *Manager[Id]) update(fn func(s *paging.PagingState[Id])) paging.PagingState[Id] {
	return m.value.Update(func(s paging.PagingState[Id]) paging.PagingState[Id] {
		s.IDs = slices.Clone(s.IDs)
		fn(&s)
		s.Version++
		return s
	})
}

func setLoadState[Id comparable](s *paging.PagingState[Id], d paging.Direction, ls paging.LoadState) {
	if d == paging.Prepend {
		s.Prepend = ls
		return
	}
	s.Append = ls
}

// UpdateWithLoading marks direction d as Loading.
func (m *Manager[Id]) UpdateWithLoading(d paging.Direction) paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		setLoadState(s, d, paging.LoadingState())
	})
}

// UpdateWithLoadState sets the load state of direction d as is.
func (m *Manager[Id]) UpdateWithLoadState(d paging.Direction, ls paging.LoadState) paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		setLoadState(s, d, ls)
	})
}

// UpdateWithPlaceholders adds n placeholder entries at the edge of d.
// It is a no-op without a placeholder id.
func (m *Manager[Id]) UpdateWithPlaceholders(d paging.Direction, n int) paging.PagingState[Id] {
	if m.placeholder == nil || n <= 0 {
		return m.State()
	}
	slots := make([]paging.Entry[Id], n)
	for i := range slots {
		slots[i] = paging.Entry[Id]{ID: *m.placeholder, Placeholder: true}
	}
	return m.update(func(s *paging.PagingState[Id]) {
		if d == paging.Prepend {
			s.IDs = append(slots, s.IDs...)
			return
		}
		s.IDs = append(s.IDs, slots...)
	})
}

// UpdateWithData replaces the placeholders at the edge of d with ids and
// marks d NotLoading. Ids that are already visible are not repeated.
func (m *Manager[Id]) UpdateWithData(d paging.Direction, ids []Id, endReached bool) paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		s.IDs = trimPlaceholders(s.IDs, d)
		visible := make(map[Id]struct{}, len(s.IDs))
		for _, e := range s.IDs {
			if !e.Placeholder {
				visible[e.ID] = struct{}{}
			}
		}
		entries := make([]paging.Entry[Id], 0, len(ids))
		for _, id := range ids {
			if _, ok := visible[id]; ok {
				continue
			}
			visible[id] = struct{}{}
			entries = append(entries, paging.Entry[Id]{ID: id})
		}
		if d == paging.Prepend {
			s.IDs = append(entries, s.IDs...)
		} else {
			s.IDs = append(s.IDs, entries...)
		}
		setLoadState(s, d, paging.NotLoadingState(endReached))
	})
}

// UpdateWithError marks d as failed with cause.
func (m *Manager[Id]) UpdateWithError(d paging.Direction, cause error) paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		setLoadState(s, d, paging.ErrorState(cause))
	})
}

// ClearPlaceholders drops the placeholders at the edge of d.
func (m *Manager[Id]) ClearPlaceholders(d paging.Direction) paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		s.IDs = trimPlaceholders(s.IDs, d)
	})
}

// Reset restores the initial state. The version keeps increasing.
func (m *Manager[Id]) Reset() paging.PagingState[Id] {
	return m.update(func(s *paging.PagingState[Id]) {
		v := s.Version
		*s = initial[Id]()
		s.Version = v
	})
}

// UpdateWithAppendLoading marks append as Loading.
func (m *Manager[Id]) UpdateWithAppendLoading() paging.PagingState[Id] {
	return m.UpdateWithLoading(paging.Append)
}

// UpdateWithPrependLoading marks prepend as Loading.
func (m *Manager[Id]) UpdateWithPrependLoading() paging.PagingState[Id] {
	return m.UpdateWithLoading(paging.Prepend)
}

// UpdateWithAppendPlaceholders adds n trailing placeholders.
func (m *Manager[Id]) UpdateWithAppendPlaceholders(n int) paging.PagingState[Id] {
	return m.UpdateWithPlaceholders(paging.Append, n)
}

// UpdateWithPrependPlaceholders adds n leading placeholders.
func (m *Manager[Id]) UpdateWithPrependPlaceholders(n int) paging.PagingState[Id] {
	return m.UpdateWithPlaceholders(paging.Prepend, n)
}

// UpdateWithAppendData drops trailing placeholders and appends ids.
func (m *Manager[Id]) UpdateWithAppendData(ids []Id, endReached bool) paging.PagingState[Id] {
	return m.UpdateWithData(paging.Append, ids, endReached)
}

// UpdateWithPrependData drops leading placeholders and prepends ids.
func (m *Manager[Id]) UpdateWithPrependData(ids []Id, endReached bool) paging.PagingState[Id] {
	return m.UpdateWithData(paging.Prepend, ids, endReached)
}

// UpdateWithAppendError marks append as failed.
func (m *Manager[Id]) UpdateWithAppendError(cause error) paging.PagingState[Id] {
	return m.UpdateWithError(paging.Append, cause)
}

// UpdateWithPrependError marks prepend as failed.
func (m *Manager[Id]) UpdateWithPrependError(cause error) paging.PagingState[Id] {
	return m.UpdateWithError(paging.Prepend, cause)
}

func trimPlaceholders[Id comparable](entries []paging.Entry[Id], d paging.Direction) []paging.Entry[Id] {
	if d == paging.Prepend {
		i := 0
		for i < len(entries) && entries[i].Placeholder {
			i++
		}
		return entries[i:]
	}
	j := len(entries)
	for j > 0 && entries[j-1].Placeholder {
		j--
	}
	return entries[:j]
}
