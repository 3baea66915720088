// Package apperr defines the error taxonomy shared by the workflow
// services: validation failures, permission denials, and conflicts with
// already-existing state. Handlers map these onto HTTP status codes; the
// services themselves never log-and-swallow them.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports unmet input or state preconditions. Fields maps
// field names to short reason codes (reusing the validation package's
// violation vocabulary).
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Msg + " (" + strings.Join(parts, ", ") + ")"
}

// Validation builds a ValidationError for a single offending field.
func Validation(msg, field, reason string) *ValidationError {
	return &ValidationError{Msg: msg, Fields: map[string]string{field: reason}}
}

// PermissionError reports a missing capability for the requested transition.
type PermissionError struct {
	Capability string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: missing capability %q", e.Capability)
}

// ConflictError reports an operation that would duplicate existing state,
// e.g. converting an already-converted draft. Reason names what exists.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return e.Resource + ": " + e.Reason
}

// Conflict builds a ConflictError.
func Conflict(resource, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPermission reports whether err is (or wraps) a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
