package models

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrForbiddenTransition = errors.New("role may not perform this transition")
	ErrDuplicateKey        = errors.New("duplicate key")
)

// ValidationError is returned before any write when input is malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// WriteError wraps a failed persistence write.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a failed persistence read or a fetch that could not reach the backend.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsWriteError(err error) bool {
	var w *WriteError
	return errors.As(err, &w)
}

func IsReadError(err error) bool {
	var r *ReadError
	return errors.As(err, &r)
}
