package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/retry"
)

// Prometheus metrics for budget tracking.
var (
	ErrorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedpager_source_errors_remaining",
		Help: "Errors remaining in the source's current error budget window",
	})

	BlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpager_rate_limit_blocks_total",
		Help: "Fetches blocked because the error budget is critical",
	})

	ThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpager_rate_limit_throttles_total",
		Help: "Fetches delayed because the error budget is low",
	})
)

// ErrMissingResetHeader is returned when the remain header comes without
// the reset header.
var ErrMissingResetHeader = errors.New("rate limit reset header missing")

// Config configures a Tracker.
type Config struct {
	RemainHeader string
	ResetHeader  string
	Thresholds   Thresholds

	// ThrottleDelay is how long a fetch waits while the budget is low.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		RemainHeader:  DefaultRemainHeader,
		ResetHeader:   DefaultResetHeader,
		Thresholds:    DefaultThresholds(),
		ThrottleDelay: time.Second,
	}
}

// Tracker reads budget headers and gates fetches.
type Tracker struct {
	backend Backend
	cfg     Config
	logger  zerolog.Logger
}

// NewTracker creates a Tracker. A nil backend keeps the state in memory.
// Zero config fields take their defaults.
func NewTracker(backend Backend, cfg Config, logger zerolog.Logger) *Tracker {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	def := DefaultConfig()
	if cfg.RemainHeader == "" {
		cfg.RemainHeader = def.RemainHeader
	}
	if cfg.ResetHeader == "" {
		cfg.ResetHeader = def.ResetHeader
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.ThrottleDelay <= 0 {
		cfg.ThrottleDelay = def.ThrottleDelay
	}
	return &Tracker{backend: backend, cfg: cfg, logger: logger}
}

// GetState returns the current budget. Without saved state the budget is
// assumed healthy.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	s, ok, err := t.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
		h := healthyState(t.cfg.Thresholds)
		return &h, nil
	}
	s.UpdateHealth(t.cfg.Thresholds)
	return &s, nil
}

// UpdateFromHeaders records the budget carried by response headers.
// Responses without budget headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.cfg.RemainHeader)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.cfg.RemainHeader, err)
	}

	resetStr := headers.Get(t.cfg.ResetHeader)
	if resetStr == "" {
		return ErrMissingResetHeader
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.cfg.ResetHeader, err)
	}

	now := time.Now()
	state := State{
		ErrorsRemaining: remain,
		ResetAt:         now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate:      now,
	}
	state.UpdateHealth(t.cfg.Thresholds)

	if err := t.backend.Save(ctx, state); err != nil {
		return err
	}
	ErrorsRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(t.cfg.Thresholds):
		t.logger.Error().Int("errors_remaining", remain).Time("reset_at", state.ResetAt).Msg("Error budget critical, fetches will be blocked")
	case state.NeedsThrottling(t.cfg.Thresholds):
		t.logger.Warn().Int("errors_remaining", remain).Time("reset_at", state.ResetAt).Msg("Error budget low, fetches will be throttled")
	default:
		t.logger.Debug().Int("errors_remaining", remain).Bool("is_healthy", state.IsHealthy).Msg("Error budget updated")
	}
	return nil
}

// ShouldAllowRequest reports whether a fetch may proceed. A low budget
// delays the caller by ThrottleDelay first; a critical one refuses.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock(t.cfg.Thresholds) {
		t.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Error budget critical, blocking fetch")
		BlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(t.cfg.Thresholds) {
		t.logger.Warn().Int("errors_remaining", state.ErrorsRemaining).Msg("Error budget low, throttling fetch")
		ThrottlesTotal.Inc()
		if err := retry.Wait(ctx, t.cfg.ThrottleDelay); err != nil {
			return false, err
		}
	}
	return true, nil
}
