package queue

import (
	"slices"
	"sync"
	"testing"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

func req(key int) Request[int] {
	return Request[int]{Params: paging.LoadParams[int]{Key: key, Size: 10}}
}

func keysOf(rs []Request[int]) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Params.Key
	}
	return out
}

func newManager() *Manager[int] {
	return NewManager[int](paging.Numeric[int]{})
}

func TestEnqueue_FIFOAndDedup(t *testing.T) {
	m := newManager()
	for _, k := range []int{1, 2, 3} {
		if !m.EnqueueAppend(req(k)) {
			t.Fatalf("EnqueueAppend(%d) = false, want true", k)
		}
	}
	if m.EnqueueAppend(req(2)) {
		t.Error("EnqueueAppend(2) duplicate = true, want false")
	}
	if !m.EnqueuePrepend(req(2)) {
		t.Error("EnqueuePrepend(2) = false, dedup must be per queue")
	}

	if got := keysOf(m.Snapshot(paging.Append)); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("append queue = %v, want [1 2 3]", got)
	}
	if got := m.Len(paging.Prepend); got != 1 {
		t.Errorf("Len(prepend) = %d, want 1", got)
	}

	head, ok := m.Peek(paging.Append)
	if !ok || head.Params.Key != 1 {
		t.Errorf("Peek() = %v, %v, want 1", head.Params.Key, ok)
	}
	for _, want := range []int{1, 2, 3} {
		r, ok := m.Dequeue(paging.Append)
		if !ok || r.Params.Key != want {
			t.Errorf("Dequeue() = %v, %v, want %d", r.Params.Key, ok, want)
		}
	}
	if _, ok := m.Dequeue(paging.Append); ok {
		t.Error("Dequeue() on empty queue ok = true, want false")
	}
}

func TestJump(t *testing.T) {
	tests := []struct {
		name   string
		queued []int
		target int
		want   []int
	}{
		{"purges everything at or before target", []int{1, 2, 3}, 5, []int{5}},
		{"keeps keys after target", []int{1, 4, 7, 9}, 5, []int{5, 7, 9}},
		{"purges equal key", []int{5, 6}, 5, []int{5, 6}},
		{"empty queue", nil, 2, []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager()
			for _, k := range tt.queued {
				m.EnqueueAppend(req(k))
			}
			m.Jump(paging.Append, req(tt.target))
			if got := keysOf(m.Snapshot(paging.Append)); !slices.Equal(got, tt.want) {
				t.Errorf("queue after Jump(%d) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestJump_OnlyAffectsItsDirection(t *testing.T) {
	m := newManager()
	m.EnqueueAppend(req(1))
	m.EnqueuePrepend(req(1))
	m.Jump(paging.Prepend, req(3))

	if got := keysOf(m.Snapshot(paging.Append)); !slices.Equal(got, []int{1}) {
		t.Errorf("append queue = %v, want [1]", got)
	}
	if got := keysOf(m.Snapshot(paging.Prepend)); !slices.Equal(got, []int{3}) {
		t.Errorf("prepend queue = %v, want [3]", got)
	}
}

func TestPendingJobs(t *testing.T) {
	m := newManager()
	if m.HasPendingJobs() {
		t.Fatal("HasPendingJobs() = true on new manager")
	}
	if !m.AddPendingJob(10, paging.Append, false) {
		t.Fatal("AddPendingJob() = false, want true")
	}
	if m.AddPendingJob(10, paging.Append, true) {
		t.Error("AddPendingJob() duplicate = true, want false")
	}
	if !m.HasPendingJob(10) || !m.HasPendingJobsFor(paging.Append) {
		t.Error("job for 10 not reported")
	}
	if m.HasPendingJobsFor(paging.Prepend) {
		t.Error("HasPendingJobsFor(prepend) = true, want false")
	}

	m.UpdateExistingPendingJob(10, true, false)
	if job, _ := m.PendingJob(10); !job.InFlight {
		t.Error("job.InFlight = false after update, want true")
	}

	if !m.UpdateExistingPendingJob(10, false, true) {
		t.Error("UpdateExistingPendingJob(completed) = false, want true")
	}
	if m.HasPendingJob(10) || m.HasPendingJobs() {
		t.Error("completed job still pending")
	}
	if m.UpdateExistingPendingJob(10, false, true) {
		t.Error("UpdateExistingPendingJob() on missing job = true, want false")
	}
}

func TestClear(t *testing.T) {
	m := newManager()
	m.EnqueueAppend(req(1))
	m.EnqueuePrepend(req(2))
	m.AddPendingJob(3, paging.Append, true)

	m.ClearQueues()
	if m.Len(paging.Append) != 0 || m.Len(paging.Prepend) != 0 {
		t.Error("queues not empty after ClearQueues")
	}
	if !m.HasPendingJob(3) {
		t.Error("ClearQueues dropped the ledger")
	}

	m.ClearPendingJobs()
	if m.HasPendingJobs() {
		t.Error("HasPendingJobs() = true after ClearPendingJobs")
	}
}

func TestClearQueues_StartsNewGeneration(t *testing.T) {
	m := newManager()
	m.EnqueueAppend(req(1))
	dequeued, _ := m.Dequeue(paging.Append)
	bypass := m.Stamp(req(5))

	if !m.IsCurrent(dequeued) || !m.IsCurrent(bypass) {
		t.Fatal("requests of the current generation reported stale")
	}

	m.ClearQueues()
	if m.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", m.Generation())
	}

	tests := []struct {
		name string
		r    Request[int]
		want bool
	}{
		{"dequeued before clear", dequeued, false},
		{"stamped before clear", bypass, false},
		{"stamped after clear", m.Stamp(req(5)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsCurrent(tt.r); got != tt.want {
				t.Errorf("IsCurrent() = %v, want %v", got, tt.want)
			}
		})
	}

	m.Jump(paging.Append, req(7))
	m.EnqueuePrepend(req(3))
	for _, d := range []paging.Direction{paging.Append, paging.Prepend} {
		r, _ := m.Dequeue(d)
		if !m.IsCurrent(r) {
			t.Errorf("%s request enqueued after clear is stale (gen %d)", d, r.Gen)
		}
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	m := newManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			m.EnqueueAppend(req(k % 10))
		}(i)
	}
	wg.Wait()
	if got := m.Len(paging.Append); got != 10 {
		t.Errorf("Len() = %d, want 10 distinct keys", got)
	}
}
