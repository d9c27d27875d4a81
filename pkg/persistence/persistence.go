// Package persistence defines the contracts the normalized cache needs from
// a persistence layer, plus several implementations:
//
//   - Nop: no persistence configured; every call reports ErrSkipped.
//   - Memory: process-local maps, useful for tests and ephemeral sessions.
//   - Redis: go-redis backed, JSON encoded, with pub/sub item observation.
//   - Badger: embedded badger/v4 database with prefix iteration.
//
// Pages are stored normalized: a page record only holds its item ids and
// adjacent keys, item values live in the item store.
package persistence

import (
	"context"
	"errors"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

var (
	// ErrNotFound indicates the requested item or page is not persisted.
	ErrNotFound = errors.New("not persisted")

	// ErrSkipped indicates that no persistence is configured.
	ErrSkipped = errors.New("persistence skipped")
)

// Page is the persisted form of a page.
type Page[Id comparable, K comparable] struct {
	Key     K    `json:"key"`
	IDs     []Id `json:"ids"`
	PrevKey *K   `json:"prev_key,omitempty"`
	NextKey *K   `json:"next_key,omitempty"`
}

// ItemStore persists item values by id.
type ItemStore[Id comparable, V any] interface {
	GetItem(ctx context.Context, id Id) (V, error)
	SaveItem(ctx context.Context, id Id, value V) error
	RemoveItem(ctx context.Context, id Id) error
	QueryItems(ctx context.Context, match func(paging.Item[Id, V]) bool) ([]paging.Item[Id, V], error)

	// ObserveItem streams values saved for id until ctx is done.
	ObserveItem(ctx context.Context, id Id) (<-chan V, error)
}

// PageStore persists page records by load params.
type PageStore[Id comparable, K comparable] interface {
	GetPage(ctx context.Context, params paging.LoadParams[K]) (Page[Id, K], error)
	SavePage(ctx context.Context, params paging.LoadParams[K], page Page[Id, K]) error
	RemovePage(ctx context.Context, params paging.LoadParams[K]) error
	PageExists(ctx context.Context, params paging.LoadParams[K]) (bool, error)
}

// Store combines both stores.
type Store[Id comparable, K comparable, V any] interface {
	ItemStore[Id, V]
	PageStore[Id, K]
}

// IsSkipped reports whether err means "no persistence configured".
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}

// IsNotFound reports whether err is a persistence miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
