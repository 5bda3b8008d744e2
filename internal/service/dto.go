package service

import (
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
)

// PurchaseOptions tune a single purchase. A nil ButtonSource falls back to the
// process-wide attribution code; a pointer to "" sends none.
type PurchaseOptions struct {
	ButtonSource *string
}

type ExpressResult struct {
	Payment     *payment.Payment
	Token       string
	RedirectURL string
}

type ConfirmStatus string

const (
	ConfirmCompleted      ConfirmStatus = "completed"
	ConfirmReviewRequired ConfirmStatus = "review_required"
)

// ConfirmResult is returned when the shopper comes back from the gateway.
// Reported is what the gateway says the shopper approved; it only differs from
// Expected when Status is review_required.
type ConfirmResult struct {
	Status   ConfirmStatus
	Payment  *payment.Payment
	Expected payment.Amount
	Reported payment.Amount
}

type RefundResult struct {
	Payment             *payment.Payment
	Amount              payment.Amount
	RefundType          payment.RefundType
	RefundTransactionID string
}

// Recorder receives business-level counters. *observability.Metrics satisfies it.
type Recorder interface {
	CheckoutStep(step, outcome string)
	Refund(refundType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutStep(string, string) {}
func (nopRecorder) Refund(string, string)       {}
