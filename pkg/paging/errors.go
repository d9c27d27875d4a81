package paging

import "errors"

// Error taxonomy shared by the engine.
var (
	// ErrTransientFetch wraps failures reported by the remote source.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrPersistence marks a degraded persistence layer. It is logged and absorbed.
	ErrPersistence = errors.New("persistence error")

	// ErrEmptyResult is reported when a LocalOnly load finds nothing.
	ErrEmptyResult = errors.New("empty result")

	// ErrAlreadyInFlight is reported when a load for the same key is outstanding.
	ErrAlreadyInFlight = errors.New("load already in flight")
)
