// Package config loads the feedpager configuration from file, environment
// and defaults.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FEEDPAGER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// FEEDPAGER_PAGING_PAGE_SIZE=50.
const EnvPrefix = "FEEDPAGER"

// Config is the feedpager configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Source describes the HTTP page source
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Paging holds the pager sizing and prefetch settings
	Paging PagingConfig `mapstructure:"paging" yaml:"paging"`

	// ErrorHandling selects what happens when a load fails
	ErrorHandling ErrorHandlingConfig `mapstructure:"error_handling" yaml:"error_handling"`

	// Store selects the persistence layer
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metrics contains the Prometheus endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error" yaml:"level"`

	// Pretty enables human-readable console output
	Pretty bool `mapstructure:"pretty" yaml:"pretty"`
}

// SourceConfig describes the HTTP page source.
type SourceConfig struct {
	BaseURL   string            `mapstructure:"base_url" validate:"required,url" yaml:"base_url"`
	UserAgent string            `mapstructure:"user_agent" validate:"required" yaml:"user_agent"`
	Timeout   time.Duration     `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`

	// RateLimit gates requests on the source's error budget headers
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures the error budget gate.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	RemainHeader  string        `mapstructure:"remain_header" yaml:"remain_header"`
	ResetHeader   string        `mapstructure:"reset_header" yaml:"reset_header"`
	Critical      int           `mapstructure:"critical" validate:"gte=0" yaml:"critical"`
	Warning       int           `mapstructure:"warning" validate:"gtefield=Critical" yaml:"warning"`
	Healthy       int           `mapstructure:"healthy" validate:"gtefield=Warning" yaml:"healthy"`
	ThrottleDelay time.Duration `mapstructure:"throttle_delay" validate:"gte=0" yaml:"throttle_delay"`

	// Shared keeps the budget in the configured Redis so several pagers
	// share it. Requires store.type=redis.
	Shared bool `mapstructure:"shared" yaml:"shared"`
}

// PagingConfig holds pager sizing.
type PagingConfig struct {
	InitialKey       int64  `mapstructure:"initial_key" yaml:"initial_key"`
	PageSize         int    `mapstructure:"page_size" validate:"gt=0" yaml:"page_size"`
	InitialLoadSize  int    `mapstructure:"initial_load_size" validate:"gt=0" yaml:"initial_load_size"`
	PrefetchDistance int    `mapstructure:"prefetch_distance" validate:"gt=0" yaml:"prefetch_distance"`
	MaxSize          int    `mapstructure:"max_size" validate:"gte=0" yaml:"max_size"`
	PlaceholderID    *int64 `mapstructure:"placeholder_id" yaml:"placeholder_id,omitempty"`
}

// ErrorHandlingConfig selects the error policy and its backoff.
type ErrorHandlingConfig struct {
	// Strategy is one of ignore, pass_through, retry_last
	Strategy   string `mapstructure:"strategy" validate:"oneof=ignore pass_through retry_last" yaml:"strategy"`
	MaxRetries int    `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries"`

	Backoff BackoffConfig `mapstructure:"backoff" yaml:"backoff"`
}

// BackoffConfig shapes RetryLast delays.
type BackoffConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay" yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"gte=1" yaml:"multiplier"`
	JitterFactor float64       `mapstructure:"jitter_factor" validate:"gte=0,lte=1" yaml:"jitter_factor"`
}

// StoreConfig selects the persistence layer.
type StoreConfig struct {
	// Type is one of none, memory, redis, badger
	Type      string        `mapstructure:"type" validate:"oneof=none memory redis badger" yaml:"type"`
	Namespace string        `mapstructure:"namespace" yaml:"namespace"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0" yaml:"ttl"`

	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Badger BadgerConfig `mapstructure:"badger" yaml:"badger"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" validate:"gte=0" yaml:"db"`
}

// BadgerConfig configures the Badger store.
type BadgerConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables it.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port" yaml:"addr"`
}

// Override adjusts a loaded configuration before validation, e.g. from
// CLI flags.
type Override func(*Config)

// Load loads configuration from file, environment, and defaults, applies
// the overrides and validates the result. An empty configPath searches the
// default location; a missing file falls back to defaults plus environment.
func Load(configPath string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, o := range overrides {
		o(cfg)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	// may hold a redis password
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment overrides and the config file search.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(GetConfigDir())
	v.AddConfigPath(".")
	v.SetConfigName("feedpager")
	v.SetConfigType("yaml")
}

// envKeys are bound explicitly so AutomaticEnv also applies to keys that no
// config file sets.
var envKeys = []string{
	"logging.level", "logging.pretty",
	"source.base_url", "source.user_agent", "source.timeout",
	"source.rate_limit.enabled", "source.rate_limit.remain_header", "source.rate_limit.reset_header",
	"source.rate_limit.critical", "source.rate_limit.warning", "source.rate_limit.healthy",
	"source.rate_limit.throttle_delay", "source.rate_limit.shared",
	"paging.initial_key", "paging.page_size", "paging.initial_load_size",
	"paging.prefetch_distance", "paging.max_size", "paging.placeholder_id",
	"error_handling.strategy", "error_handling.max_retries",
	"error_handling.backoff.initial_delay", "error_handling.backoff.max_delay",
	"error_handling.backoff.multiplier", "error_handling.backoff.jitter_factor",
	"store.type", "store.namespace", "store.ttl",
	"store.redis.addr", "store.redis.password", "store.redis.db",
	"store.badger.path", "store.badger.in_memory",
	"metrics.addr",
}

func bindEnvKeys(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

// readConfigFile reports whether a config file was read. A missing file is
// not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/feedpager, ~/.config/feedpager or ".".
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "feedpager")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "feedpager")
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "feedpager.yaml")
}
