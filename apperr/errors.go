// Package apperr defines the error taxonomy shared by the conference packages.
//
// Every error type carries the key or field that caused it and matches one
// of the package sentinels through errors.Is, so callers can classify a
// failure without depending on the concrete type:
//
//	if apperr.IsConflict(err) {
//	    // business rule rejected the request, resubmitting will not help
//	}
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization is matched by AuthorizationError.
	ErrAuthorization = errors.New("authorization required")

	// ErrValidation is matched by ValidationError and by any error that
	// reports malformed caller input.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is matched by NotFoundError.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is matched by ConflictError.
	ErrConflict = errors.New("conflict")

	// ErrTransient is matched by TransientStoreError.
	ErrTransient = errors.New("transient store failure")
)

// AuthorizationError reports a missing caller identity or a caller that
// does not own the resource it tried to change.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "authorization required"
	}
	return e.Reason
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorization
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a key that does not resolve to an entity.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found with key: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a business rule violation such as a duplicate
// registration or a sold-out conference.
type ConflictError struct {
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (key: %s)", e.Reason, e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// TransientStoreError reports a transaction that could not commit within
// the configured number of attempts.
type TransientStoreError struct {
	Attempts int
	Err      error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transaction did not commit after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransient
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// Authorization returns an AuthorizationError with the given reason.
func Authorization(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// Validation returns a ValidationError for field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound returns a NotFoundError for an entity of kind identified by key.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// Conflict returns a ConflictError for key.
func Conflict(key, reason string) error {
	return &ConflictError{Key: key, Reason: reason}
}

// IsAuthorization reports whether err is an authorization failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a business rule conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransient reports whether err is an exhausted transaction.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
