package payment

import (
	"time"

	"github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/google/uuid"
)

// SourceState is the lifecycle of the money behind an Express Checkout source.
type SourceState string

const (
	SourcePending   SourceState = "pending"
	SourceCompleted SourceState = "completed"
	SourceRefunded  SourceState = "refunded"
)

// HandshakeState tracks how far the shopper got through the redirect flow.
type HandshakeState string

const (
	HandshakeAwaitingReturn HandshakeState = "awaiting_return"
	HandshakeConfirming     HandshakeState = "confirming"
	HandshakeCompleted      HandshakeState = "completed"
	HandshakeFailed         HandshakeState = "failed"
)

// RefundType is the classification sent to the gateway and kept for audit.
type RefundType string

const (
	RefundNone    RefundType = "None"
	RefundPartial RefundType = "Partial"
	RefundFull    RefundType = "Full"
)

// ClassifyRefund returns Full when the requested amount equals what was
// captured, and Partial otherwise.
func ClassifyRefund(requested, captured Amount) RefundType {
	if requested.Equal(captured) {
		return RefundFull
	}
	return RefundPartial
}

// ExpressCheckout is the payment source created by the redirect handshake.
// Rows are never deleted; once refunded only the refund audit fields change.
type ExpressCheckout struct {
	ID                  uuid.UUID
	PaymentID           uuid.UUID
	Token               string
	PayerID             string
	TransactionID       string
	RefundTransactionID string
	RefundedAt          *time.Time
	RefundType          RefundType
	State               SourceState
	Handshake           HandshakeState
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func NewExpressCheckout(paymentID uuid.UUID, token string) (*ExpressCheckout, error) {
	if token == "" {
		return nil, errors.NewValidationError("token", "cannot be empty")
	}
	now := time.Now()
	return &ExpressCheckout{
		ID:         uuid.New(),
		PaymentID:  paymentID,
		Token:      token,
		RefundType: RefundNone,
		State:      SourcePending,
		Handshake:  HandshakeAwaitingReturn,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Approve records the payer id the shopper came back with.
func (s *ExpressCheckout) Approve(payerID string) error {
	if payerID == "" {
		return errors.NewValidationError("payer_id", "cannot be empty")
	}
	if s.Handshake != HandshakeAwaitingReturn && s.Handshake != HandshakeConfirming {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot confirm a checkout in state "+string(s.Handshake),
			errors.ErrInvalidStateTransition,
		)
	}
	s.PayerID = payerID
	s.Handshake = HandshakeConfirming
	s.UpdatedAt = time.Now()
	return nil
}

// Complete records a successful capture.
func (s *ExpressCheckout) Complete(transactionID string) error {
	if s.State != SourcePending {
		return errors.NewDomainError(
			"invalid_transition",
			"source already "+string(s.State),
			errors.ErrInvalidStateTransition,
		)
	}
	s.TransactionID = transactionID
	s.State = SourceCompleted
	s.Handshake = HandshakeCompleted
	s.UpdatedAt = time.Now()
	return nil
}

// Fail ends the handshake without touching any transaction fields.
func (s *ExpressCheckout) Fail() {
	s.Handshake = HandshakeFailed
	s.UpdatedAt = time.Now()
}

// RecordRefund stores the outcome of a successful refund. A second refund
// overwrites the audit fields of the first.
func (s *ExpressCheckout) RecordRefund(refundTransactionID string, refundType RefundType, at time.Time) error {
	if s.TransactionID == "" {
		return errors.ErrPaymentNotCaptured
	}
	if refundTransactionID == "" {
		return errors.NewValidationError("refund_transaction_id", "cannot be empty")
	}
	s.RefundTransactionID = refundTransactionID
	s.RefundType = refundType
	s.RefundedAt = &at
	s.State = SourceRefunded
	s.UpdatedAt = at
	return nil
}

// Refunded reports whether at least one refund has been recorded.
func (s *ExpressCheckout) Refunded() bool {
	return s.State == SourceRefunded
}
