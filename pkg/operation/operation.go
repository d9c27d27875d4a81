// Package operation implements the ordered, predicate-gated transforms that
// post-process loaded snapshots.
//
// Order is significant: Filter then Sort is not the same pipeline as Sort
// then Filter. Operations must treat their input as immutable and return a
// new slice, because the Applier memoises results and hands the same slices
// to later callers.
package operation

import (
	"cmp"
	"slices"

	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Predicate decides whether an operation applies to a load.
type Predicate[Id comparable, K comparable] func(key K, ps paging.PagingState[Id], fs fetching.State[Id, K]) bool

// Transform rewrites a snapshot.
type Transform[Id comparable, V any] func(items []paging.Item[Id, V]) []paging.Item[Id, V]

// Operation is a named transform with a predicate.
type Operation[Id comparable, K comparable, V any] struct {
	Name        string
	ShouldApply Predicate[Id, K]
	Apply       Transform[Id, V]
}

// Always is a predicate that always matches.
func Always[Id comparable, K comparable](K, paging.PagingState[Id], fetching.State[Id, K]) bool {
	return true
}

// WhenKey matches loads for one key.
func WhenKey[Id comparable, K comparable](key K) Predicate[Id, K] {
	return func(k K, _ paging.PagingState[Id], _ fetching.State[Id, K]) bool {
		return k == key
	}
}

// New creates an operation. A nil predicate means Always.
func New[Id comparable, K comparable, V any](name string, pred Predicate[Id, K], fn Transform[Id, V]) *Operation[Id, K, V] {
	if pred == nil {
		pred = Always[Id, K]
	}
	return &Operation[Id, K, V]{Name: name, ShouldApply: pred, Apply: fn}
}

// Filter keeps the items for which keep returns true.
func Filter[Id comparable, K comparable, V any](name string, keep func(paging.Item[Id, V]) bool) *Operation[Id, K, V] {
	return New[Id, K, V](name, nil, func(items []paging.Item[Id, V]) []paging.Item[Id, V] {
		out := make([]paging.Item[Id, V], 0, len(items))
		for _, it := range items {
			if keep(it) {
				out = append(out, it)
			}
		}
		return out
	})
}

// SortBy stably sorts items with cmpFn.
func SortBy[Id comparable, K comparable, V any](name string, cmpFn func(a, b paging.Item[Id, V]) int) *Operation[Id, K, V] {
	return New[Id, K, V](name, nil, func(items []paging.Item[Id, V]) []paging.Item[Id, V] {
		out := slices.Clone(items)
		slices.SortStableFunc(out, cmpFn)
		return out
	})
}

// SortByID sorts items by id, descending when desc is set.
func SortByID[Id cmp.Ordered, K comparable, V any](name string, desc bool) *Operation[Id, K, V] {
	return SortBy[Id, K, V](name, func(a, b paging.Item[Id, V]) int {
		if desc {
			return cmp.Compare(b.ID, a.ID)
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Map rewrites every item value.
func Map[Id comparable, K comparable, V any](name string, fn func(paging.Item[Id, V]) paging.Item[Id, V]) *Operation[Id, K, V] {
	return New[Id, K, V](name, nil, func(items []paging.Item[Id, V]) []paging.Item[Id, V] {
		out := make([]paging.Item[Id, V], len(items))
		for i, it := range items {
			out[i] = fn(it)
		}
		return out
	})
}

// Dedupe drops later items whose id was already seen. Placeholders are kept.
func Dedupe[Id comparable, K comparable, V any](name string) *Operation[Id, K, V] {
	return New[Id, K, V](name, nil, func(items []paging.Item[Id, V]) []paging.Item[Id, V] {
		seen := make(map[Id]struct{}, len(items))
		out := make([]paging.Item[Id, V], 0, len(items))
		for _, it := range items {
			if !it.Placeholder {
				if _, ok := seen[it.ID]; ok {
					continue
				}
				seen[it.ID] = struct{}{}
			}
			out = append(out, it)
		}
		return out
	})
}
