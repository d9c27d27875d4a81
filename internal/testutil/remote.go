// Package testutil provides testing utilities for the paging engine.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// Feed is an in-memory remote source over the ids [0, Total). The page at key
// k holds ids [k, k+size); keys are item offsets. It counts calls and can be
// told to fail, block or slow down.
type Feed struct {
	Total int

	mu       sync.Mutex
	calls    int
	perKey   map[int]int
	failures int
	failErr  error
	delay    time.Duration
	gate     chan struct{}
}

// NewFeed creates a Feed with total items.
func NewFeed(total int) *Feed {
	return &Feed{Total: total, perKey: make(map[int]int)}
}

// Value returns the value the feed serves for id.
func Value(id int) string {
	return fmt.Sprintf("item-%d", id)
}

// Fetch implements paging.Fetcher.
func (f *Feed) Fetch(ctx context.Context, params paging.LoadParams[int]) (paging.Data[int, int, string], error) {
	f.mu.Lock()
	f.calls++
	f.perKey[params.Key]++
	gate, delay := f.gate, f.delay
	var err error
	if f.failures != 0 {
		err = f.failErr
		if f.failures > 0 {
			f.failures--
		}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return paging.Data[int, int, string]{}, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return paging.Data[int, int, string]{}, ctx.Err()
		}
	}
	if err != nil {
		return paging.Data[int, int, string]{}, err
	}
	return f.Page(params.Key, params.Size), nil
}

// Page builds the page at key without counting a call.
func (f *Feed) Page(key, size int) paging.Data[int, int, string] {
	start := max(key, 0)
	end := min(start+size, f.Total)
	var data paging.Data[int, int, string]
	for id := start; id < end; id++ {
		data.Items = append(data.Items, paging.Item[int, string]{ID: id, Value: Value(id)})
	}
	if end < f.Total {
		data.NextKey = paging.Ptr(end)
	}
	if start > 0 {
		data.PrevKey = paging.Ptr(max(start-size, 0))
	}
	return data
}

// Calls returns the number of Fetch calls.
func (f *Feed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CallsFor returns the number of Fetch calls for key.
func (f *Feed) CallsFor(key int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perKey[key]
}

// FailNext makes the next n calls return err. A negative n fails every call.
func (f *Feed) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.failErr = err
}

// SetDelay delays every call.
func (f *Feed) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Block makes calls wait until the returned release func is called.
func (f *Feed) Block() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}
