package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence. A payment and
// its source are always read and written together.
type Repository interface {
	// Create inserts a new payment and its source
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByToken retrieves the payment whose source carries the checkout token
	GetByToken(ctx context.Context, token string) (*Payment, error)

	// Update persists status changes on the payment and its source
	Update(ctx context.Context, payment *Payment) error

	// AddEvent adds a payment event for audit trail
	AddEvent(ctx context.Context, event *PaymentEvent) error

	// GetEvents retrieves events for a payment
	GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*PaymentEvent, error)
}

// Locker serialises operations on a single source.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// PaymentEvent represents an event in the payment lifecycle
type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}

const (
	EventCheckoutStarted   = "checkout.started"
	EventCheckoutCanceled  = "checkout.canceled"
	EventPurchaseSucceeded = "purchase.succeeded"
	EventPurchaseFailed    = "purchase.failed"
	EventRefundSucceeded   = "refund.succeeded"
	EventRefundFailed      = "refund.failed"
)

// NewEvent builds an audit event stamped with the current time.
func NewEvent(paymentID uuid.UUID, eventType string, data map[string]any) *PaymentEvent {
	return &PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		EventData: data,
		CreatedAt: time.Now(),
	}
}
