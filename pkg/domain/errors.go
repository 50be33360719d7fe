package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUsageLimitExceeded   = "USAGE_LIMIT_EXCEEDED"
	ErrCodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeBadRequest           = "BAD_REQUEST"
)

// LimitError is returned when creating a resource would exceed the plan limit.
type LimitError struct {
	Kind    string
	Current int
	Limit   int
	Tier    string
	Message string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeUsageLimitExceeded, e.Message)
}

// Error constructors

// NewNotFoundError creates a new not found error.
// message is returned to the client verbatim.
func NewNotFoundError(message string) error {
	return &DomainError{Code: ErrCodeNotFound, Message: message}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{Code: ErrCodeValidation, Message: msg}
}

// NewSubscriptionInactiveError creates an error for paid tiers without an active subscription
func NewSubscriptionInactiveError() error {
	return &DomainError{
		Code:    ErrCodeSubscriptionInactive,
		Message: "Your subscription is not active. Please update your payment method.",
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(msg string) error {
	return &DomainError{Code: ErrCodeUnauthorized, Message: msg}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(msg string) error {
	return &DomainError{Code: ErrCodeForbidden, Message: msg}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{Code: ErrCodeConflict, Message: msg}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(msg string) error {
	return &DomainError{Code: ErrCodeBadRequest, Message: msg}
}

// Helper functions to check error types

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsBadRequest checks if the error is a bad request error
func IsBadRequest(err error) bool { return hasCode(err, ErrCodeBadRequest) }

// IsSubscriptionInactive checks if the error is a subscription inactive error
func IsSubscriptionInactive(err error) bool { return hasCode(err, ErrCodeSubscriptionInactive) }

// IsLimitExceeded checks if the error is a plan limit error
func IsLimitExceeded(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var le *LimitError
	if errors.As(err, &le) {
		return ErrCodeUsageLimitExceeded
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
