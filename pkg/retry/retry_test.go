package retry

import (
	"errors"
	"sync"
	"testing"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

type classified struct{ retryable bool }

func (c classified) Error() string   { return "classified" }
func (c classified) Retryable() bool { return c.retryable }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: true},
		{name: "non-retryable", err: classified{retryable: false}, want: false},
		{name: "retryable", err: classified{retryable: true}, want: true},
		{name: "wrapped non-retryable", err: errors.Join(errors.New("ctx"), classified{}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExhaustedError_Unwrap(t *testing.T) {
	cause := errors.New("upstream down")
	err := error(&ExhaustedError{Attempts: 4, Cause: cause})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("errors.Is(err, ErrRetryExhausted) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	want := "retry attempts exhausted after 4 attempts: upstream down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxRetries int
		want       Policy
		wantErr    bool
	}{
		{name: "ignore", input: "ignore", want: IgnorePolicy()},
		{name: "pass through", input: "pass_through", want: PassThroughPolicy()},
		{name: "empty defaults to pass through", input: "", want: PassThroughPolicy()},
		{name: "retry last", input: "Retry_Last", maxRetries: 3, want: RetryLastPolicy(3)},
		{name: "negative retries", input: "retry_last", maxRetries: -1, wantErr: true},
		{name: "unknown", input: "explode", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePolicy(tt.input, tt.maxRetries)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePolicy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookkeeper(t *testing.T) {
	b := NewBookkeeper[int]()

	if got := b.Increment(1, paging.Append); got != 1 {
		t.Errorf("Increment() = %d, want 1", got)
	}
	if got := b.Increment(1, paging.Append); got != 2 {
		t.Errorf("Increment() = %d, want 2", got)
	}
	if got := b.Count(1, paging.Prepend); got != 0 {
		t.Errorf("Count(prepend) = %d, want 0 (directions are independent)", got)
	}

	b.Reset(1, paging.Append)
	if got := b.Count(1, paging.Append); got != 0 {
		t.Errorf("Count() after Reset = %d, want 0", got)
	}

	b.Increment(2, paging.Prepend)
	b.ResetAll()
	if got := b.Count(2, paging.Prepend); got != 0 {
		t.Errorf("Count() after ResetAll = %d, want 0", got)
	}
}

func TestBookkeeper_Concurrent(t *testing.T) {
	b := NewBookkeeper[string]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Increment("k", paging.Append)
		}()
	}
	wg.Wait()

	if got := b.Count("k", paging.Append); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}
}
