package persistence

import (
	"context"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Nop is the store used when no persistence is configured.
type Nop[Id comparable, K comparable, V any] struct{}

// NewNop returns a Nop store.
func NewNop[Id comparable, K comparable, V any]() Nop[Id, K, V] {
	return Nop[Id, K, V]{}
}

func (Nop[Id, K, V]) GetItem(context.Context, Id) (V, error) {
	var zero V
	return zero, ErrSkipped
}

func (Nop[Id, K, V]) SaveItem(context.Context, Id, V) error { return ErrSkipped }

func (Nop[Id, K, V]) RemoveItem(context.Context, Id) error { return ErrSkipped }

func (Nop[Id, K, V]) QueryItems(context.Context, func(paging.Item[Id, V]) bool) ([]paging.Item[Id, V], error) {
	return nil, ErrSkipped
}

func (Nop[Id, K, V]) ObserveItem(context.Context, Id) (<-chan V, error) { return nil, ErrSkipped }

func (Nop[Id, K, V]) GetPage(context.Context, paging.LoadParams[K]) (Page[Id, K], error) {
	return Page[Id, K]{}, ErrSkipped
}

func (Nop[Id, K, V]) SavePage(context.Context, paging.LoadParams[K], Page[Id, K]) error {
	return ErrSkipped
}

func (Nop[Id, K, V]) RemovePage(context.Context, paging.LoadParams[K]) error { return ErrSkipped }

func (Nop[Id, K, V]) PageExists(context.Context, paging.LoadParams[K]) (bool, error) {
	return false, ErrSkipped
}
