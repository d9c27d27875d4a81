package state

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

func entries(s paging.PagingState[int]) []paging.Entry[int] {
	return s.IDs
}

func TestInitialState(t *testing.T) {
	m := NewManager[int](nil)
	s := m.State()
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if s.Append.Kind != paging.NotLoading || s.Append.EndOfPaginationReached {
		t.Errorf("Append = %v, want NotLoading(end=false)", s.Append)
	}
	if s.Prepend.Kind != paging.NotLoading {
		t.Errorf("Prepend = %v, want NotLoading", s.Prepend)
	}
}

func TestAppendAndPrependData(t *testing.T) {
	m := NewManager[int](nil)
	m.UpdateWithAppendLoading()
	if got := m.State().Append.Kind; got != paging.Loading {
		t.Fatalf("Append.Kind = %v, want Loading", got)
	}

	m.UpdateWithAppendData([]int{10, 11, 12}, false)
	m.UpdateWithPrependData([]int{7, 8, 9}, true)
	s := m.UpdateWithAppendData([]int{13}, true)

	if got := paging.IDsOf(s.IDs); !slices.Equal(got, []int{7, 8, 9, 10, 11, 12, 13}) {
		t.Errorf("ids = %v, want 7..13", got)
	}
	if s.Append.String() != "NotLoading(end=true)" {
		t.Errorf("Append = %v, want NotLoading(end=true)", s.Append)
	}
	if s.Prepend.String() != "NotLoading(end=true)" {
		t.Errorf("Prepend = %v, want NotLoading(end=true)", s.Prepend)
	}
}

func TestData_DoesNotRepeatVisibleIDs(t *testing.T) {
	m := NewManager[int](nil)
	m.UpdateWithAppendData([]int{1, 2, 3}, false)
	s := m.UpdateWithAppendData([]int{3, 4, 4}, false)
	if got := paging.IDsOf(s.IDs); !slices.Equal(got, []int{1, 2, 3, 4}) {
		t.Errorf("ids = %v, want [1 2 3 4]", got)
	}
}

func TestPlaceholders(t *testing.T) {
	m := NewManager[int](paging.Ptr(-1))
	m.UpdateWithAppendData([]int{1, 2}, false)

	s := m.UpdateWithAppendPlaceholders(3)
	if s.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", s.Len())
	}
	s = m.UpdateWithPrependPlaceholders(2)
	want := []bool{true, true, false, false, true, true, true}
	for i, e := range entries(s) {
		if e.Placeholder != want[i] {
			t.Errorf("entry %d placeholder = %v, want %v", i, e.Placeholder, want[i])
		}
	}

	s = m.UpdateWithAppendData([]int{3, 4}, false)
	if got := len(entries(s)); got != 6 {
		t.Errorf("Len() after append data = %d, want 6 (2 leading placeholders + 4 ids)", got)
	}
	if !entries(s)[0].Placeholder || entries(s)[5].Placeholder {
		t.Error("append data must only replace trailing placeholders")
	}

	s = m.ClearPlaceholders(paging.Prepend)
	if got := paging.IDsOf(s.IDs); !slices.Equal(got, []int{1, 2, 3, 4}) || s.Len() != 4 {
		t.Errorf("after ClearPlaceholders = %v (len %d), want [1 2 3 4]", got, s.Len())
	}
}

func TestPlaceholders_DisabledWithoutID(t *testing.T) {
	m := NewManager[int](nil)
	before := m.State().Version
	s := m.UpdateWithAppendPlaceholders(3)
	if s.Len() != 0 || s.Version != before {
		t.Errorf("placeholders without id changed state: len %d version %d", s.Len(), s.Version)
	}
}

func TestError(t *testing.T) {
	m := NewManager[int](nil)
	cause := errors.New("boom")
	s := m.UpdateWithPrependError(cause)
	if s.Prepend.Kind != paging.LoadError || !errors.Is(s.Prepend.Cause, cause) {
		t.Errorf("Prepend = %v, want Error(boom)", s.Prepend)
	}
	if s.Append.Kind != paging.NotLoading {
		t.Errorf("Append = %v, want untouched", s.Append)
	}
}

func TestReset_KeepsVersionMonotonic(t *testing.T) {
	m := NewManager[int](nil)
	m.UpdateWithAppendData([]int{1, 2, 3}, true)
	v := m.State().Version

	s := m.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}
	if s.Version <= v {
		t.Errorf("Version after Reset = %d, want > %d", s.Version, v)
	}
	if s.Append.EndOfPaginationReached {
		t.Error("Append end flag survived Reset")
	}
}

func TestPublishedStatesAreImmutable(t *testing.T) {
	m := NewManager[int](nil)
	first := m.UpdateWithAppendData([]int{1, 2}, false)
	m.UpdateWithPrependData([]int{0}, false)
	if got := paging.IDsOf(first.IDs); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("earlier snapshot mutated: %v", got)
	}
}

func TestSubscribe(t *testing.T) {
	m := NewManager[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Subscribe(ctx)
	if s := <-ch; s.Len() != 0 {
		t.Errorf("first state len = %d, want 0", s.Len())
	}
	m.UpdateWithAppendData([]int{1}, true)
	if s := <-ch; s.Len() != 1 {
		t.Errorf("second state len = %d, want 1", s.Len())
	}
}

func TestConcurrentTransitions(t *testing.T) {
	m := NewManager[int](nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.UpdateWithAppendData([]int{i}, false)
			} else {
				m.UpdateWithPrependData([]int{i}, false)
			}
		}(i)
	}
	wg.Wait()

	s := m.State()
	if s.Len() != 100 {
		t.Errorf("Len() = %d, want 100", s.Len())
	}
	if s.Version != 100 {
		t.Errorf("Version = %d, want 100", s.Version)
	}
}
