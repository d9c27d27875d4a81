package operation

import (
	"sync"
	"testing"

	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/paging"
)

func itemsOf(ids ...int) []paging.Item[int, string] {
	out := make([]paging.Item[int, string], len(ids))
	for i, id := range ids {
		out[i] = paging.Item[int, string]{ID: id}
	}
	return out
}

func idsOf(items []paging.Item[int, string]) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func even() *Operation[int, int, string] {
	return Filter[int, int, string]("even", func(it paging.Item[int, string]) bool { return it.ID%2 == 0 })
}

func TestApplier_FilterThenSort(t *testing.T) {
	m := NewManager(even(), SortByID[int, int, string]("desc", true))
	a := NewApplier(m, 0)

	got := idsOf(a.Apply(itemsOf(3, 1, 4, 2), 0, paging.PagingState[int]{}, fetching.State[int, int]{}))
	if !equalInts(got, []int{4, 2}) {
		t.Errorf("Apply() = %v, want [4 2]", got)
	}
}

func TestApplier_OrderMatters(t *testing.T) {
	take2 := New[int, int, string]("take2", nil, func(items []paging.Item[int, string]) []paging.Item[int, string] {
		return items[:min(2, len(items))]
	})
	sortAsc := SortByID[int, int, string]("asc", false)

	input := itemsOf(9, 7, 1, 3)
	ps, fs := paging.PagingState[int]{}, fetching.State[int, int]{}

	first := idsOf(NewApplier(NewManager(take2, sortAsc), 0).Apply(input, 0, ps, fs))
	second := idsOf(NewApplier(NewManager(sortAsc, take2), 0).Apply(input, 0, ps, fs))

	if !equalInts(first, []int{7, 9}) {
		t.Errorf("take-then-sort = %v, want [7 9]", first)
	}
	if !equalInts(second, []int{1, 3}) {
		t.Errorf("sort-then-take = %v, want [1 3]", second)
	}
}

func TestApplier_PredicateGates(t *testing.T) {
	op := even()
	op.ShouldApply = WhenKey[int, int](10)
	a := NewApplier(NewManager(op), 0)

	ps, fs := paging.PagingState[int]{}, fetching.State[int, int]{}
	if got := idsOf(a.Apply(itemsOf(1, 2, 3), 0, ps, fs)); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("Apply(key=0) = %v, want [1 2 3]", got)
	}
	if got := idsOf(a.Apply(itemsOf(1, 2, 3), 10, ps, fs)); !equalInts(got, []int{2}) {
		t.Errorf("Apply(key=10) = %v, want [2]", got)
	}
}

func TestApplier_Memoises(t *testing.T) {
	calls := 0
	counting := New[int, int, string]("count", nil, func(items []paging.Item[int, string]) []paging.Item[int, string] {
		calls++
		return items
	})
	a := NewApplier(NewManager(counting), 0)

	ps := paging.PagingState[int]{Version: 1}
	fs := fetching.State[int, int]{Version: 1}
	input := itemsOf(1, 2, 3)

	a.Apply(input, 0, ps, fs)
	a.Apply(itemsOf(1, 2, 3), 0, ps, fs)
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for unchanged inputs", calls)
	}

	ps.Version = 2
	a.Apply(input, 0, ps, fs)
	if calls != 2 {
		t.Errorf("calls = %d, want 2 after paging state change", calls)
	}

	a.Apply(itemsOf(1, 2, 4), 0, ps, fs)
	if calls != 3 {
		t.Errorf("calls = %d, want 3 after input change", calls)
	}

	a.Purge()
	a.Apply(input, 0, ps, fs)
	if calls != 4 {
		t.Errorf("calls = %d, want 4 after Purge", calls)
	}
}

type article struct {
	title *string
}

func TestApplier_Fingerprint(t *testing.T) {
	byTitle := func(items []paging.Item[int, article]) uint64 {
		var h uint64
		for _, it := range items {
			for _, c := range *it.Value.title {
				h = h*31 + uint64(c)
			}
			h = h*31 + uint64(it.ID)
		}
		return h
	}

	tests := []struct {
		name      string
		opts      []ApplierOption[int, int, article]
		wantCalls int
	}{
		{"default sees only the address", nil, 1},
		{"custom sees the mutation", []ApplierOption[int, int, article]{WithFingerprint[int, int, article](byTitle)}, 2},
		{"nil keeps the default", []ApplierOption[int, int, article]{WithFingerprint[int, int, article](nil)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			counting := New[int, int, article]("count", nil, func(items []paging.Item[int, article]) []paging.Item[int, article] {
				calls++
				return items
			})
			a := NewApplier(NewManager(counting), 0, tt.opts...)

			title := "draft"
			items := []paging.Item[int, article]{{ID: 1, Value: article{title: &title}}}
			ps, fs := paging.PagingState[int]{Version: 1}, fetching.State[int, int]{Version: 1}

			a.Apply(items, 0, ps, fs)
			title = "published"
			a.Apply(items, 0, ps, fs)
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDedupe_KeepsPlaceholders(t *testing.T) {
	items := []paging.Item[int, string]{
		{ID: 1}, {ID: 1}, {ID: 0, Placeholder: true}, {ID: 0, Placeholder: true}, {ID: 2},
	}
	got := Dedupe[int, int, string]("dedupe").Apply(items)
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestMap(t *testing.T) {
	upper := Map[int, int, string]("label", func(it paging.Item[int, string]) paging.Item[int, string] {
		it.Value = "item"
		return it
	})
	got := upper.Apply(itemsOf(1, 2))
	for _, it := range got {
		if it.Value != "item" {
			t.Errorf("Value = %q, want %q", it.Value, "item")
		}
	}
}

func TestManager_Mutations(t *testing.T) {
	a, b, c := even(), SortByID[int, int, string]("asc", false), Dedupe[int, int, string]("dedupe")
	m := NewManager(a, b)

	m.Add(c)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	snapshot := m.Get()

	if !m.Remove(b) {
		t.Error("Remove(b) = false, want true")
	}
	if m.Remove(b) {
		t.Error("Remove(b) second time = true, want false")
	}
	if len(snapshot) != 3 {
		t.Errorf("earlier snapshot changed: len = %d, want 3", len(snapshot))
	}

	got := m.GetWhere(func(op *Operation[int, int, string]) bool { return op.Name == "dedupe" })
	if len(got) != 1 || got[0] != c {
		t.Errorf("GetWhere() = %v, want [dedupe]", got)
	}

	if n := m.RemoveAll(func(op *Operation[int, int, string]) bool { return true }); n != 2 {
		t.Errorf("RemoveAll() = %d, want 2", n)
	}

	m.Add(a)
	m.Clear()
	if m.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", m.Len())
	}
}

func TestManager_ConcurrentReadersAndWriters(t *testing.T) {
	m := NewManager[int, int, string]()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Add(even())
		}()
		go func() {
			defer wg.Done()
			_ = m.Get()
		}()
	}
	wg.Wait()

	if m.Len() != 20 {
		t.Errorf("Len() = %d, want 20", m.Len())
	}
}
