package sortorder

import (
	"sync"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// DefaultChunkSize is the chunk length used when none is configured.
const DefaultChunkSize = 256

type chunkVerdict[Id comparable] struct {
	hash uint64
	n    int
	scan scan[Id]
}

// Chunked analyzes a sequence chunk by chunk, reusing cached verdicts for
// chunks whose fingerprint did not change since the previous call.
type Chunked[Id comparable] struct {
	ord       paging.Ordering[Id]
	chunkSize int

	mu     sync.Mutex
	chunks []chunkVerdict[Id]

	// evaluated counts chunk scans, for tests and diagnostics.
	evaluated int
}

// NewChunked creates a chunked analyzer. chunkSize <= 0 uses DefaultChunkSize.
func NewChunked[Id comparable](ord paging.Ordering[Id], chunkSize int) *Chunked[Id] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunked[Id]{
		ord:       ord,
		chunkSize: chunkSize,
	}
}

// Analyze implements Analyzer.
func (a *Chunked[Id]) Analyze(entries []paging.Entry[Id]) Order {
	if len(entries) < 2 {
		return Unknown
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := (len(entries) + a.chunkSize - 1) / a.chunkSize
	if len(a.chunks) > n {
		a.chunks = a.chunks[:n]
	}

	var total scan[Id]
	for i := 0; i < n; i++ {
		lo := i * a.chunkSize
		hi := min(lo+a.chunkSize, len(entries))
		chunk := entries[lo:hi]
		h := fingerprint(chunk)

		if i < len(a.chunks) && a.chunks[i].hash == h && a.chunks[i].n == len(chunk) {
			total = total.merge(a.ord, a.chunks[i].scan)
			continue
		}

		v := chunkVerdict[Id]{hash: h, n: len(chunk), scan: scanEntries(a.ord, chunk)}
		a.evaluated++
		if i < len(a.chunks) {
			a.chunks[i] = v
		} else {
			a.chunks = append(a.chunks, v)
		}
		total = total.merge(a.ord, v.scan)
	}
	return total.order()
}

// Evaluated returns how many chunk scans have run so far.
func (a *Chunked[Id]) Evaluated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evaluated
}
