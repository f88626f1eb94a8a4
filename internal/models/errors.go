package models

import "errors"

// ErrorKind is the stable machine-readable classification carried by every
// error that crosses the service boundary.
type ErrorKind string

const (
	ErrKindValidationFailed       ErrorKind = "validation_failed"
	ErrKindNotFound               ErrorKind = "not_found"
	ErrKindInvalidStateTransition ErrorKind = "invalid_state_transition"
	ErrKindCapacityExceeded       ErrorKind = "capacity_exceeded"
	ErrKindConflict               ErrorKind = "conflict"
)

// DomainError is the error type returned by services and repositories for
// caller-visible failures. Internal storage errors are wrapped separately and
// never reach handlers with their detail intact.
type DomainError struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewValidationError reports bad input with optional field-level detail.
func NewValidationError(message string, fields map[string]string) *DomainError {
	return &DomainError{Kind: ErrKindValidationFailed, Message: message, Fields: fields}
}

func NewNotFoundError(message string) *DomainError {
	return &DomainError{Kind: ErrKindNotFound, Message: message}
}

func NewInvalidTransitionError(message string) *DomainError {
	return &DomainError{Kind: ErrKindInvalidStateTransition, Message: message}
}

func NewCapacityExceededError(message string) *DomainError {
	return &DomainError{Kind: ErrKindCapacityExceeded, Message: message}
}

func NewConflictError(message string) *DomainError {
	return &DomainError{Kind: ErrKindConflict, Message: message}
}

// KindOf extracts the error kind from an error chain. Returns false for
// internal errors that should surface as a generic 500.
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
