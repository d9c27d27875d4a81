package paging

import "fmt"

// LoadStateKind enumerates the load states of one direction.
type LoadStateKind int

const (
	NotLoading LoadStateKind = iota
	Loading
	LoadError
)

// LoadState is the load state of one direction.
type LoadState struct {
	Kind                   LoadStateKind
	EndOfPaginationReached bool
	Cause                  error
}

// NotLoadingState returns NotLoading(endReached).
func NotLoadingState(endReached bool) LoadState {
	return LoadState{Kind: NotLoading, EndOfPaginationReached: endReached}
}

// LoadingState returns Loading.
func LoadingState() LoadState {
	return LoadState{Kind: Loading}
}

// ErrorState returns Error(cause).
func ErrorState(cause error) LoadState {
	return LoadState{Kind: LoadError, Cause: cause}
}

// String implements fmt.Stringer.
func (s LoadState) String() string {
	switch s.Kind {
	case Loading:
		return "Loading"
	case LoadError:
		return fmt.Sprintf("Error(%v)", s.Cause)
	default:
		return fmt.Sprintf("NotLoading(end=%t)", s.EndOfPaginationReached)
	}
}

// PagingState is the externally observed state: the ordered visible sequence
// plus one load state per direction. Values are immutable once published.
type PagingState[Id comparable] struct {
	IDs     []Entry[Id]
	Append  LoadState
	Prepend LoadState

	// Version increases on every committed transition.
	Version uint64
}

// LoadStateFor returns the load state of direction d.
func (s PagingState[Id]) LoadStateFor(d Direction) LoadState {
	if d == Prepend {
		return s.Prepend
	}
	return s.Append
}

// Len returns the number of entries, placeholders included.
func (s PagingState[Id]) Len() int {
	return len(s.IDs)
}
