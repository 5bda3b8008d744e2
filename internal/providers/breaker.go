package providers

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
	// OnStateChange is invoked with the breaker name and new state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// Breaker guards a Provider with a circuit breaker. Only unreachable-gateway
// failures count against it; declines and malformed answers do not.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next Provider, s BreakerSettings) *Breaker {
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}

	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domainErrors.ErrProviderUnavailable)
		},
	}
	if s.OnStateChange != nil {
		st.OnStateChange = s.OnStateChange
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](st),
	}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) CheckoutURL(token string) string { return b.next.CheckoutURL(token) }

func (b *Breaker) SetExpressCheckout(ctx context.Context, req SetExpressCheckoutRequest) (*SetExpressCheckoutResponse, error) {
	return execute(b, "SetExpressCheckout", func() (*SetExpressCheckoutResponse, error) {
		return b.next.SetExpressCheckout(ctx, req)
	})
}

func (b *Breaker) GetExpressCheckoutDetails(ctx context.Context, token string) (*CheckoutDetails, error) {
	return execute(b, "GetExpressCheckoutDetails", func() (*CheckoutDetails, error) {
		return b.next.GetExpressCheckoutDetails(ctx, token)
	})
}

func (b *Breaker) DoExpressCheckoutPayment(ctx context.Context, req DoExpressCheckoutPaymentRequest) (*PaymentResponse, error) {
	return execute(b, "DoExpressCheckoutPayment", func() (*PaymentResponse, error) {
		return b.next.DoExpressCheckoutPayment(ctx, req)
	})
}

func (b *Breaker) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	return execute(b, "RefundTransaction", func() (*RefundResponse, error) {
		return b.next.RefundTransaction(ctx, req)
	})
}

func execute[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &domainErrors.NetworkError{Op: op, Err: err}
		}
		return zero, err
	}
	return res.(T), nil
}
