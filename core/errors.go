package core

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a bad request: a cause, or per-field messages, or both.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError is a validation error for a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

// FieldMessages maps field names to their messages; nil without fields.
func (err ValidationError) FieldMessages() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(err.Fields))
	for _, fe := range err.Fields {
		m[fe.Field] = fe.Error
	}
	return m
}

// shutdownError is returned when a process-wide resource is gone; the API stops on it.
type shutdownError struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdownError{message: msg}
}

func (s shutdownError) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdownError)
	return ok
}
