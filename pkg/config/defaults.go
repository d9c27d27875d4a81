package config

import (
	"strings"
	"time"

	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/loading"
	"github.com/Sternrassler/feedpager/pkg/persistence"
	"github.com/Sternrassler/feedpager/pkg/ratelimit"
	"github.com/Sternrassler/feedpager/pkg/retry"
	"github.com/Sternrassler/feedpager/pkg/source/httpsource"
)

// DefaultConfig returns the default configuration. Source.BaseURL has no
// default and must be set.
func DefaultConfig() *Config {
	backoff := retry.DefaultBackoffConfig()
	th := ratelimit.DefaultThresholds()
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Source: SourceConfig{
			UserAgent: httpsource.DefaultConfig("").UserAgent,
			Timeout:   30 * time.Second,
			RateLimit: RateLimitConfig{
				RemainHeader:  ratelimit.DefaultRemainHeader,
				ResetHeader:   ratelimit.DefaultResetHeader,
				Critical:      th.Critical,
				Warning:       th.Warning,
				Healthy:       th.Healthy,
				ThrottleDelay: time.Second,
			},
		},
		Paging: PagingConfig{
			PageSize:         loading.DefaultPageSize,
			InitialLoadSize:  loading.DefaultPageSize,
			PrefetchDistance: fetching.DefaultPrefetchDistance,
		},
		ErrorHandling: ErrorHandlingConfig{
			Strategy: retry.PassThrough.String(),
			Backoff: BackoffConfig{
				InitialDelay: backoff.InitialDelay,
				MaxDelay:     backoff.MaxDelay,
				Multiplier:   backoff.Multiplier,
				JitterFactor: backoff.JitterFactor,
			},
		},
		Store: StoreConfig{
			Type:      "memory",
			Namespace: persistence.DefaultNamespace,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			Badger: BadgerConfig{
				Path: "./feedpager-data",
			},
		},
	}
}

// ApplyDefaults fills zero values left by a partial config file.
func ApplyDefaults(cfg *Config) {
	def := DefaultConfig()

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}

	if cfg.Source.UserAgent == "" {
		cfg.Source.UserAgent = def.Source.UserAgent
	}
	if cfg.Source.Timeout <= 0 {
		cfg.Source.Timeout = def.Source.Timeout
	}
	applyRateLimitDefaults(&cfg.Source.RateLimit, def.Source.RateLimit)

	if cfg.Paging.PageSize <= 0 {
		cfg.Paging.PageSize = def.Paging.PageSize
	}
	if cfg.Paging.InitialLoadSize <= 0 {
		cfg.Paging.InitialLoadSize = cfg.Paging.PageSize
	}
	if cfg.Paging.PrefetchDistance <= 0 {
		cfg.Paging.PrefetchDistance = def.Paging.PrefetchDistance
	}

	cfg.ErrorHandling.Strategy = strings.ToLower(strings.TrimSpace(cfg.ErrorHandling.Strategy))
	switch cfg.ErrorHandling.Strategy {
	case "":
		cfg.ErrorHandling.Strategy = def.ErrorHandling.Strategy
	case "passthrough":
		cfg.ErrorHandling.Strategy = retry.PassThrough.String()
	case "retrylast", "retry":
		cfg.ErrorHandling.Strategy = retry.RetryLast.String()
	}
	applyBackoffDefaults(&cfg.ErrorHandling.Backoff, def.ErrorHandling.Backoff)

	cfg.Store.Type = strings.ToLower(cfg.Store.Type)
	if cfg.Store.Type == "" {
		cfg.Store.Type = def.Store.Type
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = def.Store.Namespace
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = def.Store.Redis.Addr
	}
	if cfg.Store.Badger.Path == "" && !cfg.Store.Badger.InMemory {
		cfg.Store.Badger.Path = def.Store.Badger.Path
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig, def RateLimitConfig) {
	if cfg.RemainHeader == "" {
		cfg.RemainHeader = def.RemainHeader
	}
	if cfg.ResetHeader == "" {
		cfg.ResetHeader = def.ResetHeader
	}
	if cfg.Critical == 0 && cfg.Warning == 0 && cfg.Healthy == 0 {
		cfg.Critical, cfg.Warning, cfg.Healthy = def.Critical, def.Warning, def.Healthy
	}
	if cfg.ThrottleDelay <= 0 {
		cfg.ThrottleDelay = def.ThrottleDelay
	}
}

func applyBackoffDefaults(cfg *BackoffConfig, def BackoffConfig) {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
}
