package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")
	ErrValidationFailed   = errors.New("validation failed")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
)

// FieldViolation is a single field-level validation message.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the field violations of a rejected payload.
// errors.Is(err, ErrValidationFailed) holds for every ValidationError.
type ValidationError struct {
	Violations []FieldViolation
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Violations: []FieldViolation{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
