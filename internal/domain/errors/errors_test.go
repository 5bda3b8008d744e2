package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "payment_failed",
				Message: "payment processing failed",
				Err:     errors.New("provider timeout"),
			},
			expected: "payment processing failed: provider timeout",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invalid_state",
				Message: "cannot process payment in current state",
				Err:     nil,
			},
			expected: "cannot process payment in current state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	domainErr := &DomainError{
		Code:    "test",
		Message: "test message",
		Err:     originalErr,
	}

	unwrapped := domainErr.Unwrap()
	assert.Equal(t, originalErr, unwrapped)
}

func TestNewDomainError(t *testing.T) {
	originalErr := errors.New("underlying error")
	err := NewDomainError("test_code", "test message", originalErr)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)
}

func TestNewDomainError_NilWrappedError(t *testing.T) {
	err := NewDomainError("test_code", "test message", nil)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Nil(t, err.Err)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "email",
		Message: "must be a valid email address",
	}

	expected := "validation failed for field email: must be a valid email address"
	assert.Equal(t, expected, err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("username", "cannot be empty")

	assert.NotNil(t, err)
	assert.Equal(t, "username", err.Field)
	assert.Equal(t, "cannot be empty", err.Message)
}

func TestValidationError_IsValidationFailed(t *testing.T) {
	err := NewValidationError("amount", "The partial refund amount is not valid")
	assert.ErrorIs(t, err, ErrValidationFailed)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	assert.Equal(t, "The partial refund amount is not valid", ve.Message)
}

func TestNotFoundErrors(t *testing.T) {
	assert.ErrorIs(t, ErrOrderNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrPaymentNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrOrderNotFound, ErrPaymentNotFound)
	assert.Equal(t, "order not found", ErrOrderNotFound.Error())
}

func TestNewGatewayError(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		expected string
	}{
		{"first long message wins", []string{"An error goes here.", "Another one."}, "An error goes here."},
		{"single message", []string{"Security header is not valid"}, "Security header is not valid"},
		{"no messages", nil, "the payment gateway declined the request"},
		{"empty first message", []string{""}, "the payment gateway declined the request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGatewayError("DoExpressCheckoutPayment", tt.messages)
			assert.Equal(t, tt.expected, err.Error())
			assert.Equal(t, tt.messages, err.Messages)
			assert.ErrorIs(t, err, ErrProviderRejected)
			assert.NotErrorIs(t, err, ErrProviderUnavailable)
		})
	}
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := &NetworkError{Op: "RefundTransaction", Err: cause}

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrProviderRejected)
	assert.Equal(t, "RefundTransaction: gateway unreachable: dial tcp: i/o timeout", err.Error())

	bare := &NetworkError{Op: "SetExpressCheckout"}
	assert.ErrorIs(t, bare, ErrProviderUnavailable)
	assert.Equal(t, "SetExpressCheckout: gateway unreachable", bare.Error())
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Op: "GetExpressCheckoutDetails", Reason: "missing ACK"}
	assert.ErrorIs(t, err, ErrProviderProtocol)
	assert.Equal(t, "GetExpressCheckoutDetails: missing ACK", err.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := ErrProviderUnavailable
	wrappedErr := NewDomainError("provider_error", "provider call failed", baseErr)

	assert.True(t, errors.Is(wrappedErr, baseErr))
	assert.ErrorIs(t, wrappedErr, ErrProviderUnavailable)
}
