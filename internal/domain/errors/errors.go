package errors

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors
	ErrNotFound        = errors.New("not found")
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrPaymentNotFound = fmt.Errorf("payment %w", ErrNotFound)

	// Payment errors
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentNotCaptured     = errors.New("payment has not been captured")
	ErrCurrencyMismatch       = errors.New("currency mismatch")

	// Gateway errors
	ErrProviderUnavailable = errors.New("payment gateway unreachable")
	ErrProviderRejected    = errors.New("payment rejected by gateway")
	ErrProviderProtocol    = errors.New("unexpected gateway response")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
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

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// GatewayError is returned when the gateway answered and declined the
// operation. Message is the first long message the gateway reported and is
// safe to show to the operator or shopper verbatim.
type GatewayError struct {
	Op       string
	Message  string
	Messages []string
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return ErrProviderRejected
}

// NewGatewayError builds a GatewayError from the ordered list of messages the
// gateway returned.
func NewGatewayError(op string, messages []string) *GatewayError {
	msg := "the payment gateway declined the request"
	if len(messages) > 0 && messages[0] != "" {
		msg = messages[0]
	}
	return &GatewayError{
		Op:       op,
		Message:  msg,
		Messages: messages,
	}
}

// NetworkError means the gateway could not be reached or did not answer in time.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: gateway unreachable: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: gateway unreachable", e.Op)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderUnavailable}
	}
	return []error{ErrProviderUnavailable, e.Err}
}

// ProtocolError means the gateway answered with something that could not be
// interpreted: a missing acknowledgement, a missing required field or a
// malformed amount.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProviderProtocol
}
