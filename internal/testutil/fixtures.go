package testutil

import (
	"time"

	"github.com/cassiomorais/expresscheckout/internal/domain/order"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/google/uuid"
)

// NewTestOrder returns an order worth 23.20 USD: two mugs, a promotion,
// shipping and tax.
func NewTestOrder(guestToken string) *order.Order {
	return &order.Order{
		ID:         uuid.New(),
		Number:     "R" + uuid.NewString()[:9],
		GuestToken: guestToken,
		Currency:   "USD",
		ShipTotal:  500,
		TaxTotal:   120,
		LineItems: []order.LineItem{
			{Name: "Ruby Mug", SKU: "MUG-1", PriceCents: 1000, Quantity: 2},
		},
		Adjustments: []order.Adjustment{
			{Label: "Promotion", AmountCents: -300},
		},
	}
}

// NewCheckoutPayment returns a payment waiting for the shopper to return.
func NewCheckoutPayment(orderID uuid.UUID, amountCents int64, currency, token string) *payment.Payment {
	now := time.Now()
	id := uuid.New()
	return &payment.Payment{
		ID:          id,
		OrderID:     orderID,
		OrderNumber: "R100000001",
		Amount:      payment.Amount{ValueCents: amountCents, Currency: currency},
		Status:      payment.StatusCheckout,
		Source: &payment.ExpressCheckout{
			ID:         uuid.New(),
			PaymentID:  id,
			Token:      token,
			RefundType: payment.RefundNone,
			State:      payment.SourcePending,
			Handshake:  payment.HandshakeAwaitingReturn,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewCapturedPayment returns a completed payment with a transaction id.
func NewCapturedPayment(amountCents int64, currency string) *payment.Payment {
	p := NewCheckoutPayment(uuid.New(), amountCents, currency, "EC-"+uuid.NewString()[:8])
	completedAt := time.Now()
	p.Status = payment.StatusCompleted
	p.CompletedAt = &completedAt
	p.Source.PayerID = "PAYER-1"
	p.Source.TransactionID = "TX-" + uuid.NewString()[:8]
	p.Source.State = payment.SourceCompleted
	p.Source.Handshake = payment.HandshakeCompleted
	return p
}

// SuccessfulPurchase is a gateway answer carrying one settled transaction.
func SuccessfulPurchase(transactionID string) *providers.PaymentResponse {
	return &providers.PaymentResponse{
		Response: providers.Response{Ack: providers.AckSuccess},
		PaymentInfo: []providers.PaymentInfo{
			{TransactionID: transactionID, PaymentStatus: "Completed"},
		},
	}
}

// FailedResponse is a declined gateway answer with one error per message.
func FailedResponse(messages ...string) providers.Response {
	r := providers.Response{Ack: providers.AckFailure, CorrelationID: "corr-1"}
	for _, m := range messages {
		r.Errors = append(r.Errors, providers.ProcessorError{
			Code:         "10001",
			ShortMessage: "Error",
			LongMessage:  m,
			Severity:     "Error",
		})
	}
	return r
}

// DetailsFor is a successful GetExpressCheckoutDetails answer for an order.
func DetailsFor(token, payerID string, o *order.Order) *providers.CheckoutDetails {
	return &providers.CheckoutDetails{
		Response: providers.Response{Ack: providers.AckSuccess},
		Token:    token,
		PayerID:  payerID,
		Details: providers.PaymentDetails{
			Currency:   o.Currency,
			OrderTotal: o.Total(),
			InvoiceID:  o.Number,
		},
	}
}

func StringPtr(s string) *string {
	return &s
}
