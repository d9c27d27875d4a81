package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &State{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &State{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &State{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Decisions(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name            string
		errorsRemaining int
		resetIn         time.Duration
		expectBlock     bool
		expectThrottle  bool
		expectHealthy   bool
	}{
		{name: "healthy", errorsRemaining: 100, resetIn: time.Minute, expectHealthy: true},
		{name: "at healthy threshold", errorsRemaining: th.Healthy, resetIn: time.Minute, expectHealthy: true},
		{name: "warning", errorsRemaining: 15, resetIn: time.Minute, expectThrottle: true},
		{name: "at critical threshold", errorsRemaining: th.Critical, resetIn: time.Minute, expectThrottle: true},
		{name: "critical", errorsRemaining: 3, resetIn: time.Minute, expectBlock: true},
		{name: "critical but reset passed", errorsRemaining: 3, resetIn: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{
				ErrorsRemaining: tt.errorsRemaining,
				ResetAt:         time.Now().Add(tt.resetIn),
				LastUpdate:      time.Now(),
			}
			s.UpdateHealth(th)

			if got := s.NeedsCriticalBlock(th); got != tt.expectBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.expectBlock)
			}
			if got := s.NeedsThrottling(th); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if s.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.expectHealthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	past := &State{ResetAt: time.Now().Add(-time.Minute)}
	if got := past.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}

	future := &State{ResetAt: time.Now().Add(time.Minute)}
	if got := future.TimeUntilReset(); got <= 50*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 1m", got)
	}
}
