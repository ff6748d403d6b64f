package models

import "errors"

var (
	// Resolution errors

	// ErrNotFound means an identifier does not resolve. Callers treat it as a no-op.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidReference means a resolved entity went stale or has the wrong
	// shape for the requested view.
	ErrInvalidReference = errors.New("invalid entity reference")

	// Operation errors

	// ErrInvalidOperation marks a call that is defined as a no-op, such as an
	// inclusive recursive operation without any filter.
	ErrInvalidOperation = errors.New("invalid operation")
	ErrCycle            = errors.New("attachment would create a cycle")

	// Registry errors

	ErrTypeExists  = errors.New("entity type already registered")
	ErrUnknownType = errors.New("unknown entity type")
)

// IsBenign reports errors that script-facing entry points swallow.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrInvalidOperation)
}
