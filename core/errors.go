package core

import (
	"sort"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error: it is rendered to the caller as-is instead of being logged.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldsError builds a ValidationError from a {field: message} map, sorted by field.
func NewFieldsError(fields map[string]string) error {
	flds := make([]FieldError, 0, len(fields))
	for f, msg := range fields {
		flds = append(flds, FieldError{Field: f, Error: msg})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return &ValidationError{Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// IsValidationError reports whether err, or any error it wraps, is target wrapped in a ValidationError.
func IsValidationError(err, target error) bool {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return false
	}
	return target == nil || errors.Cause(vErr.Err) == target
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
