// Package apperr defines the error taxonomy shared by the feed pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed request parameter.
// Callers surface it to the client as a 4xx-equivalent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError reports that the durable store was unavailable.
// It is logged and never aborts feed generation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistence wraps err as a PersistenceError for op
func NewPersistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// PartialContentFetchError reports that one content source failed.
// The source is omitted and the feed is built from the rest.
type PartialContentFetchError struct {
	Source string
	Err    error
}

func (e *PartialContentFetchError) Error() string {
	return fmt.Sprintf("content source %s unavailable: %v", e.Source, e.Err)
}

func (e *PartialContentFetchError) Unwrap() error { return e.Err }

// BootstrapError reports that a default profile could not be persisted.
// The feed continues with the in-memory default.
type BootstrapError struct {
	UserID string
	Err    error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("failed to bootstrap profile for user %s: %v", e.UserID, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err is or wraps a PersistenceError
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
