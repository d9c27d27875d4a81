// Package queue holds the directional load queues and the ledger of pending
// load jobs.
package queue

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Request is a queued load. Bypass requests were issued explicitly by the
// consumer and do not trigger auto-enqueueing of adjacent keys.
type Request[K comparable] struct {
	Params paging.LoadParams[K]
	Bypass bool

	// Gen is the queue generation the request was issued in. ClearQueues
	// starts a new generation; older requests are stale.
	Gen uint64
}

// Job is an outstanding load.
type Job[K comparable] struct {
	Key       K
	Direction paging.Direction
	InFlight  bool
}

// Manager owns the append and prepend FIFOs and the pending-job ledger.
// All mutations are serialized so queues and ledger change together.
type Manager[K comparable] struct {
	keys   paging.Ordering[K]
	logger zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	append  []Request[K]
	prepend []Request[K]
	pending map[K]*Job[K]
}

// NewManager creates an empty Manager. keys orders page keys for Jump.
func NewManager[K comparable](keys paging.Ordering[K]) *Manager[K] {
	return &Manager[K]{
		keys:    keys,
		logger:  logging.NewLogger("queue"),
		pending: make(map[K]*Job[K]),
	}
}

// WithLogger overrides the component logger.
func (m *Manager[K]) WithLogger(l zerolog.Logger) *Manager[K] {
	m.logger = l
	return m
}

func (m *Manager[K]) queue(d paging.Direction) *[]Request[K] {
	if d == paging.Prepend {
		return &m.prepend
	}
	return &m.append
}

// EnqueueAppend adds r to the tail of the append queue unless its key is
// already queued there. It reports whether r was added.
func (m *Manager[K]) EnqueueAppend(r Request[K]) bool {
	return m.enqueue(paging.Append, r)
}

// EnqueuePrepend adds r to the tail of the prepend queue unless its key is
// already queued there. It reports whether r was added.
func (m *Manager[K]) EnqueuePrepend(r Request[K]) bool {
	return m.enqueue(paging.Prepend, r)
}

// Enqueue adds r to the queue of direction d.
func (m *Manager[K]) Enqueue(d paging.Direction, r Request[K]) bool {
	return m.enqueue(d, r)
}

func (m *Manager[K]) enqueue(d paging.Direction, r Request[K]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue(d)
	if slices.ContainsFunc(*q, func(o Request[K]) bool { return o.Params.Key == r.Params.Key }) {
		m.logger.Debug().Str("direction", d.String()).Interface("key", r.Params.Key).Msg("Duplicate request dropped")
		return false
	}
	r.Gen = m.gen
	*q = append(*q, r)
	QueueDepth.WithLabelValues(d.String()).Set(float64(len(*q)))
	return true
}

// Jump drops every request of direction d whose key is at or before the
// target key and puts r at the front.
func (m *Manager[K]) Jump(d paging.Direction, r Request[K]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue(d)
	before := len(*q)
	*q = slices.DeleteFunc(*q, func(o Request[K]) bool {
		return m.keys.Compare(o.Params.Key, r.Params.Key) <= 0
	})
	r.Gen = m.gen
	*q = slices.Insert(*q, 0, r)

	QueueJumps.WithLabelValues(d.String()).Inc()
	QueueDepth.WithLabelValues(d.String()).Set(float64(len(*q)))
	m.logger.Debug().
		Str("direction", d.String()).
		Interface("key", r.Params.Key).
		Int("purged", before-len(*q)+1).
		Msg("Queue jump")
}

// Dequeue removes and returns the head of the queue of direction d.
func (m *Manager[K]) Dequeue(d paging.Direction) (Request[K], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue(d)
	if len(*q) == 0 {
		return Request[K]{}, false
	}
	r := (*q)[0]
	*q = slices.Delete(*q, 0, 1)
	QueueDepth.WithLabelValues(d.String()).Set(float64(len(*q)))
	return r, true
}

// Peek returns the head of the queue of direction d without removing it.
func (m *Manager[K]) Peek(d paging.Direction) (Request[K], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := *m.queue(d)
	if len(q) == 0 {
		return Request[K]{}, false
	}
	return q[0], true
}

// Len returns the length of the queue of direction d.
func (m *Manager[K]) Len(d paging.Direction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(*m.queue(d))
}

// Snapshot returns a copy of the queue of direction d.
func (m *Manager[K]) Snapshot(d paging.Direction) []Request[K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(*m.queue(d))
}

// Generation returns the current queue generation.
func (m *Manager[K]) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Stamp returns r issued in the current generation. Requests that bypass
// the queues are stamped so ClearQueues also invalidates them.
func (m *Manager[K]) Stamp(r Request[K]) Request[K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Gen = m.gen
	return r
}

// IsCurrent reports whether r belongs to the current generation.
func (m *Manager[K]) IsCurrent(r Request[K]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return r.Gen == m.gen
}

// ClearQueues empties both queues and starts a new generation, so requests
// already dequeued become stale. The ledger is kept.
func (m *Manager[K]) ClearQueues() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.append = nil
	m.prepend = nil
	QueueDepth.WithLabelValues(paging.Append.String()).Set(0)
	QueueDepth.WithLabelValues(paging.Prepend.String()).Set(0)
}

// AddPendingJob registers an outstanding load for key. It reports false if
// a job for key already exists.
func (m *Manager[K]) AddPendingJob(key K, d paging.Direction, inFlight bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[key]; ok {
		return false
	}
	m.pending[key] = &Job[K]{Key: key, Direction: d, InFlight: inFlight}
	PendingJobs.Inc()
	return true
}

// UpdateExistingPendingJob updates the job for key. completed removes it.
// It reports false when no job exists for key.
func (m *Manager[K]) UpdateExistingPendingJob(key K, inFlight, completed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.pending[key]
	if !ok {
		return false
	}
	if completed {
		delete(m.pending, key)
		PendingJobs.Dec()
		return true
	}
	job.InFlight = inFlight
	return true
}

// HasPendingJobs reports whether any job is outstanding.
func (m *Manager[K]) HasPendingJobs() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// HasPendingJobsFor reports whether a job of direction d is outstanding.
func (m *Manager[K]) HasPendingJobsFor(d paging.Direction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.pending {
		if job.Direction == d {
			return true
		}
	}
	return false
}

// HasPendingJob reports whether a job for key is outstanding.
func (m *Manager[K]) HasPendingJob(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

// PendingJob returns the job for key.
func (m *Manager[K]) PendingJob(key K) (Job[K], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.pending[key]
	if !ok {
		return Job[K]{}, false
	}
	return *job, true
}

// ClearPendingJobs forgets every outstanding job.
func (m *Manager[K]) ClearPendingJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	PendingJobs.Sub(float64(len(m.pending)))
	m.pending = make(map[K]*Job[K])
}
