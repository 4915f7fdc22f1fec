package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a quiz or user id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a resource already exists.
	ErrConflict = errors.New("already exists")
	// ErrUnauthorized is returned when no verified identity is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence marks storage failures; they are safe to retry.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError describes the first invalid field of a quiz definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Persistence wraps err unless it is nil or already a domain error kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
