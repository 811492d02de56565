package core

import (
	"errors"
	"sort"
	"strings"
)

// ValidationError collects every violated constraint of a request, keyed by
// field name, so callers see the full list instead of the first failure.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add appends a violation message for the given field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge folds the violations of another error into this one, if it carries
// any. Non-validation errors are ignored.
func (e *ValidationError) Merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		for field, msgs := range other.Fields {
			e.Fields[field] = append(e.Fields[field], msgs...)
		}
	}
}

// Empty reports whether no violations were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil returns the error when violations were recorded, or a plain nil
// otherwise. Returning the typed nil directly would yield a non-nil error
// interface.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, field := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(field + ": " + strings.Join(e.Fields[field], ", "))
	}
	return b.String()
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
