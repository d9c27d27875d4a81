package fetching

import (
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/sortorder"
)

// DefaultPrefetchDistance is used when no distance is configured.
const DefaultPrefetchDistance = 50

// Decider decides whether a direction should load more.
type Decider[Id comparable, K comparable] interface {
	ShouldFetch(d paging.Direction, ps paging.PagingState[Id], fs State[Id, K]) bool
}

// Strategy is the sort-order and distance based prefetch heuristic. It
// infers the apparent order of the visible sequence, picks the extremum that
// faces the requested direction and fetches while the loaded extremum is
// closer than the prefetch distance to the accessed one. Until the consumer
// has accessed anything it always fetches.
type Strategy[Id comparable, K comparable] struct {
	ord              paging.Ordering[Id]
	prefetchDistance float64
}

// NewStrategy creates a Strategy. prefetchDistance <= 0 uses
// DefaultPrefetchDistance.
func NewStrategy[Id comparable, K comparable](ord paging.Ordering[Id], prefetchDistance int) *Strategy[Id, K] {
	if prefetchDistance <= 0 {
		prefetchDistance = DefaultPrefetchDistance
	}
	return &Strategy[Id, K]{
		ord:              ord,
		prefetchDistance: float64(prefetchDistance),
	}
}

// ShouldFetch implements Decider.
func (s *Strategy[Id, K]) ShouldFetch(d paging.Direction, ps paging.PagingState[Id], fs State[Id, K]) bool {
	switch sortorder.Apparent(s.ord, ps.IDs) {
	case sortorder.Ascending:
		return s.decide(d, true, fs)
	case sortorder.Descending:
		return s.decide(d, false, fs)
	default:
		// unknown order: prefer fetching over stalling
		return s.decide(d, true, fs) || s.decide(d, false, fs)
	}
}

func (s *Strategy[Id, K]) decide(d paging.Direction, ascending bool, fs State[Id, K]) bool {
	// the tail holds the largest ids when appending to an ascending list
	// (or prepending to a descending one)
	towardsMax := (d == paging.Append) == ascending

	loaded, accessed := fs.MinItemLoadedSoFar, fs.MinItemAccessedSoFar
	if towardsMax {
		loaded, accessed = fs.MaxItemLoadedSoFar, fs.MaxItemAccessedSoFar
	}
	if accessed == nil || loaded == nil {
		return true
	}

	c := s.ord.Compare(*accessed, *loaded)
	if (towardsMax && c >= 0) || (!towardsMax && c <= 0) {
		// the consumer is at or beyond the loaded edge
		return true
	}
	return s.ord.Distance(*loaded, *accessed) < s.prefetchDistance
}
