package config

import (
	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/pager"
	"github.com/Sternrassler/feedpager/pkg/ratelimit"
	"github.com/Sternrassler/feedpager/pkg/retry"
	"github.com/Sternrassler/feedpager/pkg/source/httpsource"
)

// Policy returns the configured error handling policy.
func (c *Config) Policy() (retry.Policy, error) {
	return retry.ParsePolicy(c.ErrorHandling.Strategy, c.ErrorHandling.MaxRetries)
}

// BackoffConfig returns the retry backoff configuration.
func (c *Config) BackoffConfig() retry.BackoffConfig {
	b := c.ErrorHandling.Backoff
	return retry.BackoffConfig{
		InitialDelay: b.InitialDelay,
		MaxDelay:     b.MaxDelay,
		Multiplier:   b.Multiplier,
		JitterFactor: b.JitterFactor,
	}
}

// PagerConfig returns the pager configuration for int64 ids and keys.
func (c *Config) PagerConfig() (pager.Config[int64, int64], error) {
	policy, err := c.Policy()
	if err != nil {
		return pager.Config[int64, int64]{}, err
	}
	return pager.Config[int64, int64]{
		InitialKey:       c.Paging.InitialKey,
		PageSize:         c.Paging.PageSize,
		InitialLoadSize:  c.Paging.InitialLoadSize,
		PrefetchDistance: c.Paging.PrefetchDistance,
		MaxSize:          c.Paging.MaxSize,
		PlaceholderID:    c.Paging.PlaceholderID,
		Policy:           policy,
		Backoff:          c.BackoffConfig(),
		IDs:              paging.Numeric[int64]{},
		Keys:             paging.Numeric[int64]{},
	}, nil
}

// SourceConfig returns the HTTP source configuration.
func (c *Config) SourceConfig() httpsource.Config {
	return httpsource.Config{
		BaseURL:   c.Source.BaseURL,
		UserAgent: c.Source.UserAgent,
		Timeout:   c.Source.Timeout,
		Headers:   c.Source.Headers,
	}
}

// RateLimitConfig returns the error budget tracker configuration.
func (c *Config) RateLimitConfig() ratelimit.Config {
	rl := c.Source.RateLimit
	return ratelimit.Config{
		RemainHeader:  rl.RemainHeader,
		ResetHeader:   rl.ResetHeader,
		Thresholds:    ratelimit.Thresholds{Critical: rl.Critical, Warning: rl.Warning, Healthy: rl.Healthy},
		ThrottleDelay: rl.ThrottleDelay,
	}
}

// LoggingConfig returns the logger setup.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
