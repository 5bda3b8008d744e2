package providers

import (
	"context"

	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
)

// Provider is the Express Checkout gateway. Every method either returns a
// response (whose Success flag tells whether the gateway accepted the call)
// or a *errors.NetworkError / *errors.ProtocolError.
type Provider interface {
	// Name returns the provider name.
	Name() string
	SetExpressCheckout(ctx context.Context, req SetExpressCheckoutRequest) (*SetExpressCheckoutResponse, error)
	GetExpressCheckoutDetails(ctx context.Context, token string) (*CheckoutDetails, error)
	DoExpressCheckoutPayment(ctx context.Context, req DoExpressCheckoutPaymentRequest) (*PaymentResponse, error)
	RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	// CheckoutURL is where the shopper is sent to approve the payment.
	CheckoutURL(token string) string
}

type Environment string

const (
	Sandbox Environment = "sandbox"
	Live    Environment = "live"
	Mock    Environment = "mock"
)

// Credentials are the API signature credentials issued by the gateway.
type Credentials struct {
	Login       string
	Password    string
	Signature   string
	Environment Environment
}

// Ack is the acknowledgement the gateway attaches to every answer.
type Ack string

const (
	AckSuccess            Ack = "Success"
	AckSuccessWithWarning Ack = "SuccessWithWarning"
	AckFailure            Ack = "Failure"
	AckFailureWithWarning Ack = "FailureWithWarning"
)

func (a Ack) Success() bool {
	return a == AckSuccess || a == AckSuccessWithWarning
}

type ProcessorError struct {
	Code         string
	ShortMessage string
	LongMessage  string
	Severity     string
}

// Response holds the fields common to every gateway answer.
type Response struct {
	Ack           Ack
	CorrelationID string
	Errors        []ProcessorError
}

func (r Response) Success() bool {
	return r.Ack.Success()
}

// LongMessages returns the gateway's messages in the order it reported them.
func (r Response) LongMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := e.LongMessage
		if msg == "" {
			msg = e.ShortMessage
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

const ItemCategoryPhysical = "Physical"

type Item struct {
	Name        string
	Number      string
	Quantity    int
	AmountCents int64
	Category    string
}

// Breakdown itemises the order total. The gateway refuses a zero item total,
// so a request without a breakdown carries the order total only.
type Breakdown struct {
	ItemTotal     int64
	ShippingTotal int64
	TaxTotal      int64
	Items         []Item
}

// PaymentDetails describes what the shopper is paying for. Amounts are in
// minor units of Currency.
type PaymentDetails struct {
	Currency   string
	OrderTotal int64
	InvoiceID  string
	Breakdown  *Breakdown
}

// Total returns the order total as a domain amount.
func (d PaymentDetails) Total() payment.Amount {
	return payment.Amount{ValueCents: d.OrderTotal, Currency: d.Currency}
}

type SetExpressCheckoutRequest struct {
	ReturnURL string
	CancelURL string
	Details   PaymentDetails
}

type SetExpressCheckoutResponse struct {
	Response
	Token string
}

// CheckoutDetails is what the gateway knows about an approved checkout.
type CheckoutDetails struct {
	Response
	Token       string
	PayerID     string
	PayerEmail  string
	PayerStatus string
	Details     PaymentDetails
}

const PaymentActionSale = "Sale"

type DoExpressCheckoutPaymentRequest struct {
	PaymentAction string
	Token         string
	PayerID       string
	Details       PaymentDetails
	// ButtonSource is the partner attribution code; empty means none.
	ButtonSource string
}

type PaymentInfo struct {
	TransactionID string
	PaymentStatus string
	AmountCents   int64
	Currency      string
}

type PaymentResponse struct {
	Response
	PaymentInfo []PaymentInfo
}

// TransactionID returns the id of the first settled payment, if any.
func (r *PaymentResponse) TransactionID() string {
	if len(r.PaymentInfo) == 0 {
		return ""
	}
	return r.PaymentInfo[0].TransactionID
}

const RefundSourceAny = "any"

type RefundRequest struct {
	TransactionID string
	RefundType    payment.RefundType
	// Amount is required for partial refunds and ignored for full ones.
	Amount       *payment.Amount
	RefundSource string
	Note         string
}

type RefundResponse struct {
	Response
	RefundTransactionID string
	GrossRefundCents    int64
	Currency            string
}
