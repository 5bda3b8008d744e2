package providers

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
)

const (
	OutcomeSuccess     = "success"
	OutcomeDeclined    = "declined"
	OutcomeUnreachable = "unreachable"
	OutcomeProtocol    = "protocol_error"
	OutcomeError       = "error"
)

// CallObserver receives one observation per gateway call.
type CallObserver interface {
	ObserveGatewayCall(operation, outcome string, d time.Duration)
}

// Instrumented reports the outcome and latency of every call to observer.
type Instrumented struct {
	Provider
	observer CallObserver
}

func NewInstrumented(next Provider, observer CallObserver) *Instrumented {
	return &Instrumented{Provider: next, observer: observer}
}

// Outcome classifies a call result for metrics and logs.
func Outcome(success bool, err error) string {
	switch {
	case err == nil && success:
		return OutcomeSuccess
	case err == nil:
		return OutcomeDeclined
	case errors.Is(err, domainErrors.ErrProviderUnavailable):
		return OutcomeUnreachable
	case errors.Is(err, domainErrors.ErrProviderProtocol):
		return OutcomeProtocol
	default:
		return OutcomeError
	}
}

func (i *Instrumented) observe(op string, start time.Time, success bool, err error) {
	i.observer.ObserveGatewayCall(op, Outcome(success, err), time.Since(start))
}

func (i *Instrumented) SetExpressCheckout(ctx context.Context, req SetExpressCheckoutRequest) (*SetExpressCheckoutResponse, error) {
	start := time.Now()
	resp, err := i.Provider.SetExpressCheckout(ctx, req)
	i.observe("SetExpressCheckout", start, err == nil && resp.Success(), err)
	return resp, err
}

func (i *Instrumented) GetExpressCheckoutDetails(ctx context.Context, token string) (*CheckoutDetails, error) {
	start := time.Now()
	resp, err := i.Provider.GetExpressCheckoutDetails(ctx, token)
	i.observe("GetExpressCheckoutDetails", start, err == nil && resp.Success(), err)
	return resp, err
}

func (i *Instrumented) DoExpressCheckoutPayment(ctx context.Context, req DoExpressCheckoutPaymentRequest) (*PaymentResponse, error) {
	start := time.Now()
	resp, err := i.Provider.DoExpressCheckoutPayment(ctx, req)
	i.observe("DoExpressCheckoutPayment", start, err == nil && resp.Success(), err)
	return resp, err
}

func (i *Instrumented) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	start := time.Now()
	resp, err := i.Provider.RefundTransaction(ctx, req)
	i.observe("RefundTransaction", start, err == nil && resp.Success(), err)
	return resp, err
}
