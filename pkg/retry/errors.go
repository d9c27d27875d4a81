// Package retry provides the retry bookkeeping, backoff computation and
// error-handling policies used by the loading handler.
package retry

import (
	"errors"
	"fmt"
)

// Common errors returned by retry helpers.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// Retryable is implemented by errors that know whether retrying can help.
// Errors that do not implement it are treated as retryable.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err should be retried under RetryLast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// ExhaustedError wraps the last cause once retries are used up. Both
// ErrRetryExhausted and the cause are reachable through errors.Is.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Cause)
}

// Unwrap returns both the sentinel and the original cause.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Cause}
}
