package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for exponential backoff.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Multiplier is the growth factor between attempts.
	Multiplier float64

	// JitterFactor spreads each delay by ±JitterFactor·delay.
	JitterFactor float64
}

// DefaultBackoffConfig returns the default backoff configuration.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// Backoff computes jittered exponential delays.
type Backoff struct {
	config BackoffConfig
	rand   func() float64
}

// NewBackoff creates a Backoff. Zero fields are replaced by defaults, a
// negative jitter is treated as none.
func NewBackoff(config BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = def.Multiplier
	}
	if config.JitterFactor < 0 {
		config.JitterFactor = 0
	}
	return &Backoff{
		config: config,
		rand:   rand.Float64,
	}
}

// WithRand replaces the random source, which must return values in [0, 1).
func (b *Backoff) WithRand(fn func() float64) *Backoff {
	b.rand = fn
	return b
}

// Config returns the effective configuration.
func (b *Backoff) Config() BackoffConfig {
	return b.config
}

// Delay returns the wait before retry number n (0-based):
// clamp(initial·multiplierⁿ, max) ± jitter·delay, floored at zero.
func (b *Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	base := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(n))
	if base > float64(b.config.MaxDelay) || math.IsInf(base, 0) {
		base = float64(b.config.MaxDelay)
	}

	jitter := (b.rand()*2 - 1) * b.config.JitterFactor * base
	delay := base + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
