package sortorder

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

const (
	// DefaultMemoLimit is the largest input SinglePass memoises.
	DefaultMemoLimit = 1000

	defaultMemoEntries = 128
)

type memoKey struct {
	hash uint64
	n    int
}

// SinglePass analyzes a sequence in one scan and memoises small results.
type SinglePass[Id comparable] struct {
	ord       paging.Ordering[Id]
	memo      *lru.Cache
	memoLimit int
}

// NewSinglePass creates a single-pass analyzer. memoLimit <= 0 uses
// DefaultMemoLimit.
func NewSinglePass[Id comparable](ord paging.Ordering[Id], memoLimit int) *SinglePass[Id] {
	if memoLimit <= 0 {
		memoLimit = DefaultMemoLimit
	}
	memo, _ := lru.New(defaultMemoEntries) // only fails for a non-positive size
	return &SinglePass[Id]{
		ord:       ord,
		memo:      memo,
		memoLimit: memoLimit,
	}
}

// Analyze implements Analyzer.
func (a *SinglePass[Id]) Analyze(entries []paging.Entry[Id]) Order {
	if len(entries) < 2 {
		return Unknown
	}
	if len(entries) > a.memoLimit {
		return scanEntries(a.ord, entries).order()
	}

	key := memoKey{hash: fingerprint(entries), n: len(entries)}
	if v, ok := a.memo.Get(key); ok {
		return v.(Order)
	}
	order := scanEntries(a.ord, entries).order()
	a.memo.Add(key, order)
	return order
}
