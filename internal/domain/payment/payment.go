package payment

import (
	"time"

	"github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/google/uuid"
)

// PaymentStatus represents the payment status in the state machine
type PaymentStatus string

const (
	StatusCheckout   PaymentStatus = "checkout"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
)

// Payment is the local record of one Express Checkout attempt against an order.
// It owns exactly one ExpressCheckout source.
type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Amount      Amount
	Status      PaymentStatus
	Source      *ExpressCheckout
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewPayment creates a payment in checkout state together with its source.
func NewPayment(orderID uuid.UUID, orderNumber string, amount Amount, token string) (*Payment, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if orderID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}

	now := time.Now()
	p := &Payment{
		ID:          uuid.New(),
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Amount:      amount,
		Status:      StatusCheckout,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	source, err := NewExpressCheckout(p.ID, token)
	if err != nil {
		return nil, err
	}
	p.Source = source
	return p, nil
}

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusCheckout: {
		StatusProcessing,
		StatusFailed,
	},
	StatusProcessing: {
		StatusCompleted,
		StatusFailed,
	},
	StatusCompleted: {}, // refunds are tracked on the source
	StatusFailed:    {}, // no automatic retry
}

// CanTransitionTo checks if the payment can transition to the given status
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	allowed, exists := transitions[p.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the payment to a new status
func (p *Payment) TransitionTo(newStatus PaymentStatus) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	p.Status = newStatus
	p.UpdatedAt = time.Now()

	if newStatus == StatusCompleted || newStatus == StatusFailed {
		now := time.Now()
		p.CompletedAt = &now
	}
	return nil
}

// MarkProcessing transitions the payment to processing status
func (p *Payment) MarkProcessing() error {
	return p.TransitionTo(StatusProcessing)
}

// MarkCompleted completes the payment and records the capture on its source.
func (p *Payment) MarkCompleted(transactionID string) error {
	if transactionID == "" {
		return errors.NewValidationError("transaction_id", "cannot be empty")
	}
	if p.Source == nil {
		return errors.NewDomainError("missing_source", "payment has no source", errors.ErrInvalidStateTransition)
	}
	if err := p.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	p.LastError = nil
	return p.Source.Complete(transactionID)
}

// MarkFailed transitions the payment to failed status. The source keeps
// its token and gets no transaction id.
func (p *Payment) MarkFailed(errorMsg string) error {
	if err := p.TransitionTo(StatusFailed); err != nil {
		return err
	}
	p.LastError = &errorMsg
	if p.Source != nil {
		p.Source.Fail()
	}
	return nil
}

// IsTerminal checks if the payment is in a terminal state
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// Captured reports whether the gateway has confirmed the purchase.
func (p *Payment) Captured() bool {
	return p.Status == StatusCompleted && p.Source != nil && p.Source.TransactionID != ""
}
