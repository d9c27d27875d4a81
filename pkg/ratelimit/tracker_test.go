package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/retry"
)

func newTracker(b Backend) *Tracker {
	return NewTracker(b, Config{ThrottleDelay: 10 * time.Millisecond}, zerolog.Nop())
}

func budgetHeaders(remain, reset string) http.Header {
	h := http.Header{}
	if remain != "" {
		h.Set(DefaultRemainHeader, remain)
	}
	if reset != "" {
		h.Set(DefaultResetHeader, reset)
	}
	return h
}

func TestUpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name         string
		remainHeader string
		resetHeader  string
		wantErr      bool
		wantRemain   int
		wantHealthy  bool
		wantStored   bool
	}{
		{name: "healthy state", remainHeader: "100", resetHeader: "60", wantRemain: 100, wantHealthy: true, wantStored: true},
		{name: "warning state", remainHeader: "15", resetHeader: "30", wantRemain: 15, wantStored: true},
		{name: "critical state", remainHeader: "3", resetHeader: "45", wantRemain: 3, wantStored: true},
		{name: "missing headers", wantStored: false},
		{name: "invalid remain header", remainHeader: "invalid", resetHeader: "60", wantErr: true},
		{name: "invalid reset header", remainHeader: "100", resetHeader: "invalid", wantErr: true},
		{name: "missing reset header", remainHeader: "100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			tracker := newTracker(backend)

			err := tracker.UpdateFromHeaders(context.Background(), budgetHeaders(tt.remainHeader, tt.resetHeader))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateFromHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}

			s, ok, _ := backend.Load(context.Background())
			if ok != tt.wantStored {
				t.Fatalf("stored = %v, want %v", ok, tt.wantStored)
			}
			if !ok {
				return
			}
			if s.ErrorsRemaining != tt.wantRemain {
				t.Errorf("ErrorsRemaining = %d, want %d", s.ErrorsRemaining, tt.wantRemain)
			}
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestUpdateFromHeaders_MissingResetIsSentinel(t *testing.T) {
	err := newTracker(nil).UpdateFromHeaders(context.Background(), budgetHeaders("10", ""))
	if !errors.Is(err, ErrMissingResetHeader) {
		t.Errorf("UpdateFromHeaders() error = %v, want ErrMissingResetHeader", err)
	}
}

func TestUpdateFromHeaders_CustomHeaderNames(t *testing.T) {
	backend := NewMemoryBackend()
	tracker := NewTracker(backend, Config{RemainHeader: "X-Budget", ResetHeader: "X-Budget-Reset"}, zerolog.Nop())

	h := http.Header{}
	h.Set("X-Budget", "42")
	h.Set("X-Budget-Reset", "10")
	if err := tracker.UpdateFromHeaders(context.Background(), h); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	s, _, _ := backend.Load(context.Background())
	if s.ErrorsRemaining != 42 {
		t.Errorf("ErrorsRemaining = %d, want 42", s.ErrorsRemaining)
	}
}

func TestGetState_DefaultsToHealthy(t *testing.T) {
	s, err := newTracker(nil).GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !s.IsHealthy {
		t.Error("IsHealthy = false, want true")
	}
}

func TestShouldAllowRequest(t *testing.T) {
	tests := []struct {
		name         string
		remain       string
		wantAllowed  bool
		wantBlocks   float64
		wantThrottle float64
	}{
		{name: "healthy", remain: "100", wantAllowed: true},
		{name: "warning", remain: "15", wantAllowed: true, wantThrottle: 1},
		{name: "critical", remain: "3", wantAllowed: false, wantBlocks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTracker(nil)
			if err := tracker.UpdateFromHeaders(context.Background(), budgetHeaders(tt.remain, "60")); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}
			blocks := testutil.ToFloat64(BlocksTotal)
			throttles := testutil.ToFloat64(ThrottlesTotal)

			allowed, err := tracker.ShouldAllowRequest(context.Background())
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.wantAllowed {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.wantAllowed)
			}
			if got := testutil.ToFloat64(BlocksTotal) - blocks; got != tt.wantBlocks {
				t.Errorf("blocks delta = %v, want %v", got, tt.wantBlocks)
			}
			if got := testutil.ToFloat64(ThrottlesTotal) - throttles; got != tt.wantThrottle {
				t.Errorf("throttles delta = %v, want %v", got, tt.wantThrottle)
			}
		})
	}
}

func TestShouldAllowRequest_ThrottleHonoursContext(t *testing.T) {
	tracker := NewTracker(nil, Config{ThrottleDelay: time.Hour}, zerolog.Nop())
	if err := tracker.UpdateFromHeaders(context.Background(), budgetHeaders("15", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed || !errors.Is(err, retry.ErrContextCancelled) {
		t.Errorf("ShouldAllowRequest() = %v, %v, want false, ErrContextCancelled", allowed, err)
	}
}

func TestNewRedisKeys(t *testing.T) {
	keys := NewRedisKeys(":prod:")
	if keys.ErrorsRemaining != "feedpager:prod:rate_limit:errors_remaining" {
		t.Errorf("ErrorsRemaining key = %q", keys.ErrorsRemaining)
	}
	if got := NewRedisKeys("").LastUpdate; got != "feedpager:default:rate_limit:last_update" {
		t.Errorf("LastUpdate key = %q", got)
	}
}

func TestRedisBackend(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	backend := NewRedisBackend(client, "ratelimit-test")
	defer client.Del(ctx, backend.keys.ErrorsRemaining, backend.keys.ResetTimestamp, backend.keys.LastUpdate)

	tracker := newTracker(backend)
	if err := tracker.UpdateFromHeaders(ctx, budgetHeaders("17", "30")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	s, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if s.ErrorsRemaining != 17 {
		t.Errorf("ErrorsRemaining = %d, want 17", s.ErrorsRemaining)
	}
	if s.TimeUntilReset() <= 0 {
		t.Error("TimeUntilReset() = 0, want positive")
	}
}
