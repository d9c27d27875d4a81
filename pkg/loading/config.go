package loading

import (
	"github.com/Sternrassler/feedpager/pkg/retry"
)

// Config holds the loading handler configuration.
type Config struct {
	// PageSize is the size of auto-enqueued follow-up loads.
	PageSize int

	// Policy decides what happens when a load fails.
	Policy retry.Policy

	// Backoff shapes the delay between RetryLast attempts.
	Backoff retry.BackoffConfig
}

// DefaultPageSize is used when Config.PageSize is zero.
const DefaultPageSize = 20

// DefaultConfig returns the default handler configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Policy:   retry.PassThroughPolicy(),
		Backoff:  retry.DefaultBackoffConfig(),
	}
}

func (c Config) normalized() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Policy.Kind == retry.RetryLast && c.Policy.MaxRetries < 0 {
		c.Policy.MaxRetries = 0
	}
	return c
}
