package providers

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/google/uuid"
)

// MockProvider simulates the gateway for local development. It remembers the
// checkouts it started so confirm and purchase behave like the sandbox.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
	baseURL     string

	mu        sync.Mutex
	checkouts map[string]PaymentDetails
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithTimeoutRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.timeoutRate = rate }
}

// WithRedirectBase sets where CheckoutURL points, usually the service's own
// confirm endpoint so the flow can be exercised without a browser.
func WithRedirectBase(u string) MockProviderOption {
	return func(p *MockProvider) { p.baseURL = u }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:        name,
		failureRate: 0.0,
		latency:     100 * time.Millisecond,
		timeoutRate: 0.0,
		baseURL:     "http://localhost:8080/paypal/confirm",
		checkouts:   make(map[string]PaymentDetails),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) CheckoutURL(token string) string {
	return fmt.Sprintf("%s?token=%s&PayerID=MOCKPAYER", p.baseURL, token)
}

func (p *MockProvider) SetExpressCheckout(ctx context.Context, req SetExpressCheckoutRequest) (*SetExpressCheckoutResponse, error) {
	if err := p.simulate(ctx, "SetExpressCheckout"); err != nil {
		return nil, err
	}
	if p.fail() {
		return &SetExpressCheckoutResponse{Response: p.failure("simulated checkout failure")}, nil
	}

	token := "EC-" + strings.ToUpper(uuid.New().String()[:17])
	p.mu.Lock()
	p.checkouts[token] = req.Details
	p.mu.Unlock()

	return &SetExpressCheckoutResponse{Response: p.success(), Token: token}, nil
}

func (p *MockProvider) GetExpressCheckoutDetails(ctx context.Context, token string) (*CheckoutDetails, error) {
	if err := p.simulate(ctx, "GetExpressCheckoutDetails"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	details, ok := p.checkouts[token]
	p.mu.Unlock()
	if !ok {
		return &CheckoutDetails{Response: p.failure("This Express Checkout session has expired.")}, nil
	}

	return &CheckoutDetails{
		Response:    p.success(),
		Token:       token,
		PayerID:     "MOCKPAYER",
		PayerEmail:  "buyer@example.com",
		PayerStatus: "verified",
		Details:     details,
	}, nil
}

func (p *MockProvider) DoExpressCheckoutPayment(ctx context.Context, req DoExpressCheckoutPaymentRequest) (*PaymentResponse, error) {
	if err := p.simulate(ctx, "DoExpressCheckoutPayment"); err != nil {
		return nil, err
	}
	if p.fail() {
		return &PaymentResponse{Response: p.failure(fmt.Sprintf("%s: simulated processing failure for token %s", p.name, req.Token))}, nil
	}

	return &PaymentResponse{
		Response: p.success(),
		PaymentInfo: []PaymentInfo{{
			TransactionID: fmt.Sprintf("%s_txn_%s", p.name, uuid.New().String()[:8]),
			PaymentStatus: "Completed",
			AmountCents:   req.Details.OrderTotal,
			Currency:      req.Details.Currency,
		}},
	}, nil
}

func (p *MockProvider) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if err := p.simulate(ctx, "RefundTransaction"); err != nil {
		return nil, err
	}
	if p.fail() {
		return &RefundResponse{Response: p.failure(fmt.Sprintf("%s: simulated refund failure", p.name))}, nil
	}

	resp := &RefundResponse{
		Response:            p.success(),
		RefundTransactionID: fmt.Sprintf("%s_refund_%s", p.name, uuid.New().String()[:8]),
	}
	if req.Amount != nil {
		resp.GrossRefundCents = req.Amount.ValueCents
		resp.Currency = req.Amount.Currency
	}
	return resp, nil
}

func (p *MockProvider) simulate(ctx context.Context, op string) error {
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return &domainErrors.NetworkError{Op: op, Err: ctx.Err()}
	}

	if rand.Float64() < p.timeoutRate {
		return &domainErrors.NetworkError{Op: op, Err: fmt.Errorf("simulated timeout")}
	}
	return nil
}

func (p *MockProvider) fail() bool {
	return rand.Float64() < p.failureRate
}

func (p *MockProvider) success() Response {
	return Response{Ack: AckSuccess, CorrelationID: uuid.New().String()[:13]}
}

func (p *MockProvider) failure(msg string) Response {
	return Response{
		Ack:           AckFailure,
		CorrelationID: uuid.New().String()[:13],
		Errors: []ProcessorError{{
			Code:         "10001",
			ShortMessage: "Internal Error",
			LongMessage:  msg,
			Severity:     "Error",
		}},
	}
}
