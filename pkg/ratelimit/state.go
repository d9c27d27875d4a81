// Package ratelimit tracks the error budget a page source advertises in its
// response headers and gates fetches before the budget runs out. Budget
// state lives in memory or in Redis, so pagers in several processes can
// share one budget.
package ratelimit

import (
	"time"
)

// Default header names carrying the budget.
const (
	DefaultRemainHeader = "X-Error-Limit-Remain"
	DefaultResetHeader  = "X-Error-Limit-Reset"
)

// Default thresholds for budget decisions.
const (
	// DefaultThresholdCritical blocks fetches below this many remaining errors.
	DefaultThresholdCritical = 5

	// DefaultThresholdWarning throttles fetches below this many remaining errors.
	DefaultThresholdWarning = 20

	// DefaultThresholdHealthy marks the budget healthy at or above this value.
	DefaultThresholdHealthy = 50
)

// Thresholds decide when the budget blocks or throttles.
type Thresholds struct {
	Critical int
	Warning  int
	Healthy  int
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: DefaultThresholdCritical,
		Warning:  DefaultThresholdWarning,
		Healthy:  DefaultThresholdHealthy,
	}
}

// State is the error budget of a source.
type State struct {
	// ErrorsRemaining is the number of errors the source still tolerates.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is when the source resets the budget.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the budget was last read from a response.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is set by UpdateHealth.
	IsHealthy bool `json:"is_healthy"`
}

// healthyState is assumed until a response carried budget headers.
func healthyState(t Thresholds) State {
	now := time.Now()
	return State{
		ErrorsRemaining: t.Healthy * 2,
		ResetAt:         now.Add(60 * time.Second),
		LastUpdate:      now,
		IsHealthy:       true,
	}
}

// IsStale reports whether the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock reports whether fetches must be blocked.
func (s *State) NeedsCriticalBlock(t Thresholds) bool {
	return s.ErrorsRemaining < t.Critical && !s.resetPassed()
}

// NeedsThrottling reports whether fetches should be slowed down.
func (s *State) NeedsThrottling(t Thresholds) bool {
	return s.ErrorsRemaining < t.Warning && !s.NeedsCriticalBlock(t) && !s.resetPassed()
}

// TimeUntilReset returns the time left until the budget resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy.
func (s *State) UpdateHealth(t Thresholds) {
	s.IsHealthy = s.ErrorsRemaining >= t.Healthy
}

func (s *State) resetPassed() bool {
	return !s.ResetAt.IsZero() && time.Now().After(s.ResetAt)
}
