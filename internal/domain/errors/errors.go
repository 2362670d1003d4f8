package errors

import (
	"errors"
	"fmt"
)

var (
	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrNoCartLike             = errors.New("no cart or order found for payment")
	ErrConcurrentModification = errors.New("payment concurrently modified")
	ErrInvalidStateTransition = errors.New("invalid transaction state transition")
	ErrInvalidInput           = errors.New("invalid input")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// Configuration errors
	ErrNoExecutor   = errors.New("no executor configured for payment method and transaction type")
	ErrTypeNotFound = errors.New("interaction type not found")
	ErrNoTenant     = errors.New("unknown tenant")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
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

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
