package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

var (
	ErrNotFound                 = NewDomainError("NOT_FOUND", "resource not found")
	ErrForbidden                = NewDomainError("FORBIDDEN", "access to this resource is forbidden")
	ErrValidation               = NewDomainError("VALIDATION_ERROR", "validation failed")
	ErrInvalidTransition        = NewDomainError("INVALID_TRANSITION", "transition not allowed in current state")
	ErrProviderUnavailable      = NewDomainError("PROVIDER_UNAVAILABLE", "provider unavailable")
	ErrMalformedProviderPayload = NewDomainError("MALFORMED_PROVIDER_PAYLOAD", "malformed provider payload")
	ErrUpsertConflict           = NewDomainError("UPSERT_CONFLICT", "upsert conflict")
)

// Wrap attaches detail to a sentinel while keeping errors.Is working.
func Wrap(base *DomainError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
