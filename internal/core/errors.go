package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the record engine. Callers match them with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrNotFound         = errors.New("record not found")
	ErrStorage          = errors.New("storage error")
	ErrUnsupportedField = errors.New("unsupported field")
	ErrUnknownType      = errors.New("unknown record type")
	ErrHook             = errors.New("post-commit hook failed")
)

// ValidationError describes one invalid field value.
type ValidationError struct {
	Field   string `json:"field"`           // Field name
	Value   string `json:"value,omitempty"` // The offending value, when there is one
	Message string `json:"message"`         // Human-readable problem
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors is the set of problems found on one candidate record.
// It matches ErrValidation.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

// Fields returns the names of the invalid fields.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field)
	}
	return out
}

func invalid(field, value, format string, args ...any) ValidationErrors {
	return ValidationErrors{{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}}
}

// StorageError wraps a persistence failure that is not an integrity violation.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}

// HookError carries the error of a hook that ran after a committed mutation.
// The mutation itself is durable.
type HookError struct {
	Event string // "create", "update" or "delete"
	Type  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook for %s: %v", e.Event, e.Type, e.Err)
}

func (e *HookError) Unwrap() []error { return []error{ErrHook, e.Err} }
