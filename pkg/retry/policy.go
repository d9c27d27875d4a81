package retry

import (
	"fmt"
	"strings"
)

// PolicyKind enumerates the error handling strategies.
type PolicyKind int

const (
	// Ignore swallows load errors.
	Ignore PolicyKind = iota

	// PassThrough surfaces load errors through the paging state.
	PassThrough

	// RetryLast retries the failed load up to MaxRetries times before passing through.
	RetryLast
)

// String implements fmt.Stringer.
func (k PolicyKind) String() string {
	switch k {
	case Ignore:
		return "ignore"
	case PassThrough:
		return "pass_through"
	case RetryLast:
		return "retry_last"
	default:
		return fmt.Sprintf("policy(%d)", int(k))
	}
}

// Policy is the configured error handling strategy.
type Policy struct {
	Kind       PolicyKind
	MaxRetries int
}

// IgnorePolicy returns the Ignore policy.
func IgnorePolicy() Policy { return Policy{Kind: Ignore} }

// PassThroughPolicy returns the PassThrough policy.
func PassThroughPolicy() Policy { return Policy{Kind: PassThrough} }

// RetryLastPolicy returns RetryLast(maxRetries).
func RetryLastPolicy(maxRetries int) Policy {
	return Policy{Kind: RetryLast, MaxRetries: maxRetries}
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p.Kind == RetryLast {
		return fmt.Sprintf("retry_last(%d)", p.MaxRetries)
	}
	return p.Kind.String()
}

// ParsePolicy parses a policy name as used in configuration files.
func ParsePolicy(name string, maxRetries int) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ignore":
		return IgnorePolicy(), nil
	case "pass_through", "passthrough", "":
		return PassThroughPolicy(), nil
	case "retry_last", "retrylast", "retry":
		if maxRetries < 0 {
			return Policy{}, fmt.Errorf("max_retries must be >= 0 (got %d)", maxRetries)
		}
		return RetryLastPolicy(maxRetries), nil
	default:
		return Policy{}, fmt.Errorf("unknown error handling strategy %q", name)
	}
}
