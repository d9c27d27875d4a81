package paging

import "context"

// Fetcher is the remote source. It performs one attempt per call and never
// retries internally.
type Fetcher[Id comparable, K comparable, V any] interface {
	Fetch(ctx context.Context, params LoadParams[K]) (Data[Id, K, V], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[Id comparable, K comparable, V any] func(ctx context.Context, params LoadParams[K]) (Data[Id, K, V], error)

// Fetch implements Fetcher.
func (f FetcherFunc[Id, K, V]) Fetch(ctx context.Context, params LoadParams[K]) (Data[Id, K, V], error) {
	return f(ctx, params)
}
