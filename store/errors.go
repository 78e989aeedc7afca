package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not resolve to a document.
	ErrNotFound = errors.New("store: document not found")

	// ErrInvalidKey is returned when an encoded key cannot be parsed.
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrConcurrentModification is returned when a document changed between
	// the read and the write that depended on it (version mismatch).
	ErrConcurrentModification = errors.New("store: document was modified concurrently")

	// ErrTransactionExhausted is returned when a transaction kept conflicting
	// until the configured number of attempts ran out.
	ErrTransactionExhausted = errors.New("store: transaction retries exhausted")

	// ErrInvalidHierarchy is returned when a key's parent kind does not match
	// the registered relationships.
	ErrInvalidHierarchy = errors.New("store: invalid key hierarchy")

	// ErrTooManyWrites is returned when a transaction touches more documents
	// than a single commit can carry.
	ErrTooManyWrites = errors.New("store: too many documents in transaction")
)

// ExhaustedError wraps the last conflict seen by a transaction that ran out
// of attempts.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("store: transaction retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrTransactionExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
