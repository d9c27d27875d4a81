package paging

import "fmt"

// Direction is the side of the collection a load extends.
type Direction int

const (
	// Append loads pages after the current tail.
	Append Direction = iota

	// Prepend loads pages before the current head.
	Prepend
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Append:
		return "append"
	case Prepend:
		return "prepend"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Prepend {
		return Append
	}
	return Prepend
}

// LoadStrategy selects which layers a load may resolve from.
type LoadStrategy int

const (
	// CacheFirst resolves from memory, then persistence, then the remote source.
	CacheFirst LoadStrategy = iota

	// SkipCache always goes to the remote source.
	SkipCache

	// LocalOnly never goes to the remote source.
	LocalOnly
)

// String implements fmt.Stringer.
func (s LoadStrategy) String() string {
	switch s {
	case CacheFirst:
		return "cache_first"
	case SkipCache:
		return "skip_cache"
	case LocalOnly:
		return "local_only"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Origin tags where a loaded page came from.
type Origin int

const (
	OriginNetwork Origin = iota
	OriginMemoryCache
	OriginDatabase
	OriginPlaceholder
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	switch o {
	case OriginNetwork:
		return "network"
	case OriginMemoryCache:
		return "memory_cache"
	case OriginDatabase:
		return "database"
	case OriginPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// LoadParams describes one page request.
type LoadParams[K comparable] struct {
	Key       K
	Size      int
	Strategy  LoadStrategy
	Direction Direction
}

// String renders params for logs.
func (p LoadParams[K]) String() string {
	return fmt.Sprintf("%s:%v:%s:%d", p.Direction, p.Key, p.Strategy, p.Size)
}

// Item is a value keyed by its id. Placeholder items occupy a position in
// a snapshot before their value has arrived.
type Item[Id comparable, V any] struct {
	ID          Id   `json:"id"`
	Value       V    `json:"value"`
	Placeholder bool `json:"-"`
}

// EntriesOfItems returns the visible entries for items.
func EntriesOfItems[Id comparable, V any](items []Item[Id, V]) []Entry[Id] {
	out := make([]Entry[Id], len(items))
	for i, it := range items {
		out[i] = Entry[Id]{ID: it.ID, Placeholder: it.Placeholder}
	}
	return out
}

// Entry is one position of the visible sequence. Placeholder entries reserve
// a position whose value has not arrived yet.
type Entry[Id comparable] struct {
	ID          Id
	Placeholder bool
}

// EntriesOf converts ids into non-placeholder entries.
func EntriesOf[Id comparable](ids ...Id) []Entry[Id] {
	out := make([]Entry[Id], len(ids))
	for i, id := range ids {
		out[i] = Entry[Id]{ID: id}
	}
	return out
}

// IDsOf returns the ids of the non-placeholder entries.
func IDsOf[Id comparable](entries []Entry[Id]) []Id {
	out := make([]Id, 0, len(entries))
	for _, e := range entries {
		if !e.Placeholder {
			out = append(out, e.ID)
		}
	}
	return out
}

// Data is a loaded page.
type Data[Id comparable, K comparable, V any] struct {
	Items   []Item[Id, V]
	PrevKey *K
	NextKey *K
	Origin  Origin
}

// IDs returns the page's item ids in order.
func (d Data[Id, K, V]) IDs() []Id {
	ids := make([]Id, len(d.Items))
	for i, it := range d.Items {
		ids[i] = it.ID
	}
	return ids
}

// Ptr returns a pointer to v. Handy for optional keys.
func Ptr[T any](v T) *T {
	return &v
}
