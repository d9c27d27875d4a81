// Package sortorder classifies the order of an id sequence.
//
// Two analyzers are provided. SinglePass scans the whole sequence and
// memoises small results; it is the right choice below roughly a thousand
// entries. Chunked splits the sequence into fixed-size chunks, fingerprints
// each chunk with xxhash and re-evaluates only chunks whose fingerprint
// changed, which suits large lists that mutate slowly at their edges.
//
// Placeholder entries are skipped and never break a scan.
package sortorder

import (
	"fmt"

	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/cespare/xxhash/v2"
)

// Order is the classification of a sequence.
type Order int

const (
	// Unknown means fewer than two comparable entries, or all entries equal.
	Unknown Order = iota
	Ascending
	Descending
	Unsorted
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	case Unsorted:
		return "unsorted"
	default:
		return "unknown"
	}
}

// Analyzer classifies a sequence of entries.
type Analyzer[Id comparable] interface {
	Analyze(entries []paging.Entry[Id]) Order
}

// Apparent infers the order from the first and last non-placeholder entries
// only. It never reports Unsorted.
func Apparent[Id comparable](ord paging.Ordering[Id], entries []paging.Entry[Id]) Order {
	first, ok := firstReal(entries)
	if !ok {
		return Unknown
	}
	last, _ := lastReal(entries)
	switch c := ord.Compare(first, last); {
	case c < 0:
		return Ascending
	case c > 0:
		return Descending
	default:
		return Unknown
	}
}

func firstReal[Id comparable](entries []paging.Entry[Id]) (Id, bool) {
	for _, e := range entries {
		if !e.Placeholder {
			return e.ID, true
		}
	}
	var zero Id
	return zero, false
}

func lastReal[Id comparable](entries []paging.Entry[Id]) (Id, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Placeholder {
			return entries[i].ID, true
		}
	}
	var zero Id
	return zero, false
}

// scan is the verdict of a linear pass over a run of entries.
type scan[Id comparable] struct {
	count       int
	asc, desc   bool
	first, last Id
}

func scanEntries[Id comparable](ord paging.Ordering[Id], entries []paging.Entry[Id]) scan[Id] {
	s := scan[Id]{asc: true, desc: true}
	for _, e := range entries {
		if e.Placeholder {
			continue
		}
		if s.count == 0 {
			s.first = e.ID
		} else {
			s.step(ord, e.ID)
		}
		s.last = e.ID
		s.count++
	}
	return s
}

func (s *scan[Id]) step(ord paging.Ordering[Id], next Id) {
	switch c := ord.Compare(s.last, next); {
	case c < 0:
		s.desc = false
	case c > 0:
		s.asc = false
	}
}

// merge appends run r after s, comparing across the boundary.
func (s scan[Id]) merge(ord paging.Ordering[Id], r scan[Id]) scan[Id] {
	if r.count == 0 {
		return s
	}
	if s.count == 0 {
		return r
	}
	s.step(ord, r.first)
	s.asc = s.asc && r.asc
	s.desc = s.desc && r.desc
	s.last = r.last
	s.count += r.count
	return s
}

func (s scan[Id]) order() Order {
	switch {
	case s.count < 2:
		return Unknown
	case s.asc && s.desc:
		return Unknown
	case s.asc:
		return Ascending
	case s.desc:
		return Descending
	default:
		return Unsorted
	}
}

// fingerprint hashes entries with xxhash. Ids are rendered with %v so any
// comparable id type can be fingerprinted.
func fingerprint[Id comparable](entries []paging.Entry[Id]) uint64 {
	d := xxhash.New()
	var buf []byte
	for _, e := range entries {
		buf = fmt.Appendf(buf[:0], "%v|%t;", e.ID, e.Placeholder)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
