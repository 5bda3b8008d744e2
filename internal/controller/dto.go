package controller

import (
	"time"

	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/service"
)

// Shopper-facing messages.
const (
	MessageOrderProcessed = "Your order has been processed successfully"
	MessageReviewRequired = "The amount approved at PayPal does not match your order total. Please review your order."
	MessageCheckoutCancel = "Don't want to use PayPal? No problems."
	MessagePayPalFailed   = "PayPal failed. "
)

// Operator-facing messages.
const (
	MessageRefundSuccessful   = "PayPal refund successful"
	MessageRefundUnsuccessful = "PayPal refund unsuccessful"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

type ConfirmResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	PaymentID     string `json:"payment_id"`
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id,omitempty"`
	Expected      string `json:"expected,omitempty"`
	Reported      string `json:"reported,omitempty"`
}

func toConfirmResponse(r *service.ConfirmResult) ConfirmResponse {
	resp := ConfirmResponse{
		Status:      string(r.Status),
		PaymentID:   r.Payment.ID.String(),
		OrderNumber: r.Payment.OrderNumber,
	}
	switch r.Status {
	case service.ConfirmCompleted:
		resp.Message = MessageOrderProcessed
		if r.Payment.Source != nil {
			resp.TransactionID = r.Payment.Source.TransactionID
		}
	case service.ConfirmReviewRequired:
		resp.Message = MessageReviewRequired
		resp.Expected = r.Expected.String()
		resp.Reported = r.Reported.String()
	}
	return resp
}

type NoticeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RefundRequest carries the operator's free-text amount. Empty refunds the
// captured amount.
type RefundRequest struct {
	RefundAmount string `json:"refund_amount" validate:"max=32"`
}

type RefundResponse struct {
	Message             string          `json:"message"`
	RefundTransactionID string          `json:"refund_transaction_id"`
	RefundType          string          `json:"refund_type"`
	Amount              string          `json:"amount"`
	Currency            string          `json:"currency"`
	Payment             PaymentResponse `json:"payment"`
}

type ButtonSourceRequest struct {
	ButtonSource string `json:"button_source" validate:"required,max=32,printascii"`
}

type ButtonSourceResponse struct {
	ButtonSource string `json:"button_source"`
}

type SourceResponse struct {
	ID                  string     `json:"id"`
	Token               string     `json:"token"`
	PayerID             string     `json:"payer_id,omitempty"`
	TransactionID       string     `json:"transaction_id,omitempty"`
	RefundTransactionID string     `json:"refund_transaction_id,omitempty"`
	RefundType          string     `json:"refund_type"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	State               string     `json:"state"`
	Handshake           string     `json:"handshake"`
}

type PaymentResponse struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	LastError   *string         `json:"last_error,omitempty"`
	Source      *SourceResponse `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func toPaymentResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID.String(),
		OrderID:     p.OrderID.String(),
		OrderNumber: p.OrderNumber,
		Amount:      p.Amount.Format(),
		Currency:    p.Amount.Currency,
		Status:      string(p.Status),
		LastError:   p.LastError,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		CompletedAt: p.CompletedAt,
	}
	if s := p.Source; s != nil {
		resp.Source = &SourceResponse{
			ID:                  s.ID.String(),
			Token:               s.Token,
			PayerID:             s.PayerID,
			TransactionID:       s.TransactionID,
			RefundTransactionID: s.RefundTransactionID,
			RefundType:          string(s.RefundType),
			RefundedAt:          s.RefundedAt,
			State:               string(s.State),
			Handshake:           string(s.Handshake),
		}
	}
	return resp
}
