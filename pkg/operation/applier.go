package operation

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

// DefaultMemoSize bounds the number of memoised operation results.
const DefaultMemoSize = 256

type memoKey[K comparable] struct {
	op              any
	input           uint64
	n               int
	key             K
	pagingVersion   uint64
	fetchingVersion uint64
}

// Fingerprint hashes an operation input for the memo key. Inputs with equal
// fingerprints are treated as equal.
type Fingerprint[Id comparable, V any] func(items []paging.Item[Id, V]) uint64

// ApplierOption configures an Applier.
type ApplierOption[Id comparable, K comparable, V any] func(*Applier[Id, K, V])

// WithFingerprint replaces the default fingerprint. The default formats ids
// and values with %v, which prints nested pointers as addresses, so a V
// holding pointers to data that is mutated in place needs its own.
func WithFingerprint[Id comparable, K comparable, V any](fn Fingerprint[Id, V]) ApplierOption[Id, K, V] {
	return func(a *Applier[Id, K, V]) {
		if fn != nil {
			a.fingerprint = fn
		}
	}
}

// Applier folds the manager's matching operations over a snapshot,
// memoising each step.
type Applier[Id comparable, K comparable, V any] struct {
	manager     *Manager[Id, K, V]
	memo        *lru.Cache
	fingerprint Fingerprint[Id, V]
}

// NewApplier creates an Applier. memoSize <= 0 uses DefaultMemoSize.
func NewApplier[Id comparable, K comparable, V any](manager *Manager[Id, K, V], memoSize int, opts ...ApplierOption[Id, K, V]) *Applier[Id, K, V] {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, _ := lru.New(memoSize)
	a := &Applier[Id, K, V]{manager: manager, memo: memo, fingerprint: fingerprint[Id, V]}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply runs every operation whose predicate matches, in list order.
func (a *Applier[Id, K, V]) Apply(items []paging.Item[Id, V], key K, ps paging.PagingState[Id], fs fetching.State[Id, K]) []paging.Item[Id, V] {
	out := items
	for _, op := range a.manager.Get() {
		if !op.ShouldApply(key, ps, fs) {
			continue
		}

		mk := memoKey[K]{
			op:              op,
			input:           a.fingerprint(out),
			n:               len(out),
			key:             key,
			pagingVersion:   ps.Version,
			fetchingVersion: fs.Version,
		}
		if v, ok := a.memo.Get(mk); ok {
			out = v.([]paging.Item[Id, V])
			continue
		}
		out = op.Apply(out)
		a.memo.Add(mk, out)
	}
	return out
}

// Purge drops every memoised result.
func (a *Applier[Id, K, V]) Purge() {
	a.memo.Purge()
}

// fingerprint hashes the %v rendering of each item. V is expected to be a
// value type; see WithFingerprint.
func fingerprint[Id comparable, V any](items []paging.Item[Id, V]) uint64 {
	d := xxhash.New()
	var buf []byte
	for _, it := range items {
		buf = fmt.Appendf(buf[:0], "%v|%v|%t;", it.ID, it.Value, it.Placeholder)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
