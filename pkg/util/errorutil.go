package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidTransition signals a (role, from, to) combination absent
// from the transition table. The ticket is left untouched.
func NewInvalidTransition(role, from, to string) error {
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("role %s cannot move ticket from %s to %s", role, from, to),
		http.StatusConflict,
		map[string]any{"role": role, "from": from, "to": to})
}

// NewTransactionFailed wraps a storage failure that aborted a whole
// transition. Distinct from INVALID_TRANSITION so callers can tell a
// nonsensical request from one the system could not process.
func NewTransactionFailed(err error) error {
	return &DomainError{
		Code:       "TRANSACTION_FAILED",
		Message:    "transition could not be committed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConstraintViolation covers bad payload values such as an
// out-of-range rating or a missing required field.
func NewConstraintViolation(message string, details map[string]any) error {
	return NewDomainError("CONSTRAINT_VIOLATION", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewPermissionDenied signals a role or ownership mismatch.
func NewPermissionDenied(message string) error {
	return NewDomainError("PERMISSION_DENIED", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts a generic error into the DomainError form.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
