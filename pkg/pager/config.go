package pager

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/loading"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/retry"
)

// ErrInvalidConfig is returned by New for unusable configurations.
var ErrInvalidConfig = errors.New("invalid pager config")

// Config holds the pager configuration.
type Config[Id comparable, K comparable] struct {
	// InitialKey is the key of the eager initial load.
	InitialKey K

	// PageSize is the size of follow-up loads.
	PageSize int

	// InitialLoadSize is the size of the initial load. Defaults to PageSize.
	InitialLoadSize int

	// PrefetchDistance is how close (under the id ordering) the consumer may
	// get to the loaded edge before the next page is fetched.
	PrefetchDistance int

	// MaxSize caps the items held in memory. Zero disables eviction.
	MaxSize int

	// PlaceholderID enables placeholder entries while pages load.
	PlaceholderID *Id

	// Policy decides what happens when a load fails.
	Policy retry.Policy

	// Backoff shapes RetryLast delays.
	Backoff retry.BackoffConfig

	// IDs orders item ids. Required.
	IDs paging.Ordering[Id]

	// Keys orders page keys. Required.
	Keys paging.Ordering[K]
}

// DefaultConfig returns the default configuration. Orderings must still be set.
func DefaultConfig[Id comparable, K comparable]() Config[Id, K] {
	return Config[Id, K]{
		PageSize:         loading.DefaultPageSize,
		InitialLoadSize:  loading.DefaultPageSize,
		PrefetchDistance: fetching.DefaultPrefetchDistance,
		Policy:           retry.PassThroughPolicy(),
		Backoff:          retry.DefaultBackoffConfig(),
	}
}

func (c Config[Id, K]) normalized() (Config[Id, K], error) {
	if c.IDs == nil || c.Keys == nil {
		return c, fmt.Errorf("%w: id and key orderings are required", ErrInvalidConfig)
	}
	if c.PageSize <= 0 {
		c.PageSize = loading.DefaultPageSize
	}
	if c.InitialLoadSize <= 0 {
		c.InitialLoadSize = c.PageSize
	}
	if c.PrefetchDistance <= 0 {
		c.PrefetchDistance = fetching.DefaultPrefetchDistance
	}
	if c.Policy.Kind == retry.RetryLast && c.Policy.MaxRetries < 0 {
		return c, fmt.Errorf("%w: negative max retries", ErrInvalidConfig)
	}
	return c, nil
}
