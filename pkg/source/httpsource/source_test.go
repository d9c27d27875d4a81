package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/internal/testutil"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/ratelimit"
	"github.com/Sternrassler/feedpager/pkg/retry"
)

func newSource(t *testing.T, baseURL string, opts ...Option[int, int, string]) *Source[int, int, string] {
	t.Helper()
	opts = append([]Option[int, int, string]{WithLogger[int, int, string](zerolog.Nop())}, opts...)
	s, err := New[int, int, string](DefaultConfig(baseURL), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func params(key, size int) paging.LoadParams[int] {
	return paging.LoadParams[int]{Key: key, Size: size, Strategy: paging.SkipCache, Direction: paging.Append}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: DefaultConfig("http://localhost:8080/pages")},
		{name: "missing base url", cfg: Config{UserAgent: "x"}, wantErr: true},
		{name: "unsupported scheme", cfg: Config{BaseURL: "ftp://host", UserAgent: "x"}, wantErr: true},
		{name: "missing user agent", cfg: Config{BaseURL: "http://host"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[int, int, string](tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetch_DecodesPage(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(25))
	defer srv.Close()
	s := newSource(t, srv.URL())

	data, err := s.Fetch(context.Background(), params(10, 10))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got, want := data.IDs(), []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}; !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if data.Items[0].Value != testutil.Value(10) {
		t.Errorf("Value = %q, want %q", data.Items[0].Value, testutil.Value(10))
	}
	if data.PrevKey == nil || *data.PrevKey != 0 {
		t.Errorf("PrevKey = %v, want 0", data.PrevKey)
	}
	if data.NextKey == nil || *data.NextKey != 20 {
		t.Errorf("NextKey = %v, want 20", data.NextKey)
	}
	if data.Origin != paging.OriginNetwork {
		t.Errorf("Origin = %v, want network", data.Origin)
	}
}

func TestFetch_LastPageHasNoNextKey(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(15))
	defer srv.Close()
	s := newSource(t, srv.URL())

	data, err := s.Fetch(context.Background(), params(10, 10))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(data.Items) != 5 || data.NextKey != nil {
		t.Errorf("got %d items, NextKey %v; want 5 items, nil", len(data.Items), data.NextKey)
	}
}

func TestFetch_QueryParameters(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	defer srv.Close()
	s := newSource(t, srv.URL()+"/?tenant=a")

	p := params(0, 3)
	p.Direction = paging.Prepend
	if _, err := s.Fetch(context.Background(), p); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	u, err := url.Parse(srv.LastURL())
	if err != nil {
		t.Fatalf("parse LastURL: %v", err)
	}
	q := u.Query()
	for k, want := range map[string]string{"key": "0", "size": "3", "direction": "prepend", "tenant": "a"} {
		if got := q.Get(k); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantClass     ErrorClass
		wantRetryable bool
	}{
		{name: "bad request", status: http.StatusBadRequest, wantClass: ErrorClassClient},
		{name: "not found", status: http.StatusNotFound, wantClass: ErrorClassClient},
		{name: "too many requests", status: http.StatusTooManyRequests, wantClass: ErrorClassRateLimit, wantRetryable: true},
		{name: "server error", status: http.StatusInternalServerError, wantClass: ErrorClassServer, wantRetryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantClass: ErrorClassServer, wantRetryable: true},
		{name: "error limited", status: 520, wantClass: ErrorClassRateLimit, wantRetryable: true},
		{name: "malformed body", status: http.StatusOK, body: "{not json", wantClass: ErrorClassDecode},
	}

	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	defer srv.Close()
	s := newSource(t, srv.URL())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.SetResponse(testutil.MockResponse{StatusCode: tt.status, Body: tt.body})
			defer srv.ClearResponse()

			_, err := s.Fetch(context.Background(), params(0, 5))
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want *FetchError", err)
			}
			if fe.Class != tt.wantClass {
				t.Errorf("Class = %s, want %s", fe.Class, tt.wantClass)
			}
			if got := retry.IsRetryable(err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestFetch_DecodeErrorWrapsSentinel(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	defer srv.Close()
	srv.SetResponse(testutil.MockResponse{StatusCode: http.StatusOK, Body: "[]"})
	s := newSource(t, srv.URL())

	_, err := s.Fetch(context.Background(), params(0, 5))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Fetch() error = %v, want ErrDecode", err)
	}
}

func TestFetch_NetworkErrorIsRetryable(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	srv.SetResponse(testutil.MockResponse{StatusCode: http.StatusOK, Delay: 200 * time.Millisecond})
	defer srv.Close()

	cfg := DefaultConfig(srv.URL())
	cfg.Timeout = 20 * time.Millisecond
	s, err := New[int, int, string](cfg, WithLogger[int, int, string](zerolog.Nop()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.Fetch(context.Background(), params(0, 5))
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Class != ErrorClassNetwork {
		t.Fatalf("Fetch() error = %v, want network FetchError", err)
	}
	if !fe.Retryable() {
		t.Error("Retryable() = false, want true")
	}
}

func TestFetch_SendsHeaders(t *testing.T) {
	var got http.Header
	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL())
	cfg.UserAgent = "feedpager-test/1.0"
	cfg.Headers = map[string]string{"X-Tenant": "a"}
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Clone()
		return http.DefaultTransport.RoundTrip(r)
	})}
	s, err := New[int, int, string](cfg, WithHTTPClient[int, int, string](client), WithLogger[int, int, string](zerolog.Nop()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Fetch(context.Background(), params(0, 5)); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got.Get("User-Agent") != "feedpager-test/1.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("X-Tenant") != "a" {
		t.Errorf("X-Tenant = %q", got.Get("X-Tenant"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestFetch_TrackerBlocksWhenBudgetCritical(t *testing.T) {
	srv := testutil.NewMockPageServer(testutil.NewFeed(5))
	defer srv.Close()
	tracker := ratelimit.NewTracker(nil, ratelimit.Config{ThrottleDelay: time.Millisecond}, zerolog.Nop())
	s := newSource(t, srv.URL(), WithTracker[int, int, string](tracker))

	srv.SetResponse(testutil.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Headers: map[string]string{
			ratelimit.DefaultRemainHeader: "2",
			ratelimit.DefaultResetHeader:  "60",
		},
	})
	if _, err := s.Fetch(context.Background(), params(0, 5)); err == nil {
		t.Fatal("Fetch() error = nil, want server error")
	}
	srv.ClearResponse()

	requests := srv.RequestCount()
	_, err := s.Fetch(context.Background(), params(0, 5))
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("Fetch() error = %v, want ErrBudgetExhausted", err)
	}
	if !retry.IsRetryable(err) {
		t.Error("blocked fetch is not retryable")
	}
	if srv.RequestCount() != requests {
		t.Errorf("RequestCount() = %d, want %d (no request sent)", srv.RequestCount(), requests)
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{
			name: "without cause",
			err:  &FetchError{StatusCode: 503, Class: ErrorClassServer, Message: "503 Service Unavailable"},
			want: "fetch server error (status 503): 503 Service Unavailable",
		},
		{
			name: "with cause",
			err:  &FetchError{Class: ErrorClassNetwork, Message: "request failed", Err: errors.New("dial tcp: refused")},
			want: "fetch network error (status 0): request failed: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
