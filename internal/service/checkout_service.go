package service

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/order"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/rs/zerolog"
)

// Purchaser executes the capture once the handshake has been confirmed.
type Purchaser interface {
	PurchaseWithDetails(ctx context.Context, p *payment.Payment, details *providers.CheckoutDetails, opts PurchaseOptions) (*payment.Payment, error)
}

type CheckoutURLs struct {
	ReturnURL string
	CancelURL string
}

// CheckoutService drives the redirect handshake: start, return, confirm.
type CheckoutService struct {
	orders      order.Repository
	paymentRepo payment.Repository
	txManager   TransactionManager
	gateway     providers.Provider
	purchaser   Purchaser
	recorder    Recorder
	logger      zerolog.Logger
	urls        CheckoutURLs
}

func NewCheckoutService(
	orders order.Repository,
	paymentRepo payment.Repository,
	txManager TransactionManager,
	gateway providers.Provider,
	purchaser Purchaser,
	recorder Recorder,
	logger zerolog.Logger,
	urls CheckoutURLs,
) *CheckoutService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CheckoutService{
		orders:      orders,
		paymentRepo: paymentRepo,
		txManager:   txManager,
		gateway:     gateway,
		purchaser:   purchaser,
		recorder:    recorder,
		logger:      logger.With().Str("component", "checkout_service").Logger(),
		urls:        urls,
	}
}

// BuildCheckoutRequest describes the order to the gateway. Zero-priced lines
// are left out; adjustments become single-quantity lines. When nothing but
// shipping and tax is charged only the order total is sent.
func BuildCheckoutRequest(o *order.Order, urls CheckoutURLs) providers.SetExpressCheckoutRequest {
	details := providers.PaymentDetails{
		Currency:   o.Currency,
		OrderTotal: o.Total(),
		InvoiceID:  o.Number,
	}

	itemSum := details.OrderTotal - o.ShipTotal - o.TaxTotal
	if itemSum != 0 {
		items := make([]providers.Item, 0, len(o.LineItems)+len(o.Adjustments))
		for _, li := range o.LineItems {
			if li.PriceCents == 0 {
				continue
			}
			items = append(items, providers.Item{
				Name:        li.Name,
				Number:      li.SKU,
				Quantity:    li.Quantity,
				AmountCents: li.PriceCents,
				Category:    providers.ItemCategoryPhysical,
			})
		}
		for _, adj := range o.Adjustments {
			if adj.AmountCents == 0 {
				continue
			}
			items = append(items, providers.Item{
				Name:        adj.Label,
				Quantity:    1,
				AmountCents: adj.AmountCents,
			})
		}
		details.Breakdown = &providers.Breakdown{
			ItemTotal:     itemSum,
			ShippingTotal: o.ShipTotal,
			TaxTotal:      o.TaxTotal,
			Items:         items,
		}
	}

	return providers.SetExpressCheckoutRequest{
		ReturnURL: urls.ReturnURL,
		CancelURL: urls.CancelURL,
		Details:   details,
	}
}

// Express starts the handshake for the shopper's current order and returns
// where to redirect them.
func (s *CheckoutService) Express(ctx context.Context, guestToken string) (*ExpressResult, error) {
	const op = "SetExpressCheckout"

	o, err := s.orders.FindCurrent(ctx, guestToken)
	if err != nil {
		return nil, err
	}
	amount := payment.Amount{ValueCents: o.Total(), Currency: o.Currency}
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.gateway.SetExpressCheckout(ctx, BuildCheckoutRequest(o, s.urls))
	if err != nil {
		s.recorder.CheckoutStep("express", providers.Outcome(false, err))
		return nil, classifyProviderError(s.logger, op, err)
	}
	if !resp.Success() {
		s.recorder.CheckoutStep("express", providers.OutcomeDeclined)
		return nil, mapProviderFailure(s.logger, op, resp.Response)
	}

	p, err := payment.NewPayment(o.ID, o.Number, amount, resp.Token)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Create(txCtx, p); err != nil {
			return err
		}
		return s.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, payment.EventCheckoutStarted, map[string]any{
			"token":          resp.Token,
			"order_number":   o.Number,
			"amount_cents":   p.Amount.ValueCents,
			"correlation_id": resp.CorrelationID,
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("record checkout: %w", err)
	}

	s.recorder.CheckoutStep("express", providers.OutcomeSuccess)
	s.logger.Info().
		Str("order_number", o.Number).
		Str("payment_id", p.ID.String()).
		Str("token", resp.Token).
		Msg("express checkout started")

	return &ExpressResult{
		Payment:     p,
		Token:       resp.Token,
		RedirectURL: s.gateway.CheckoutURL(resp.Token),
	}, nil
}

// Confirm handles the shopper's return from the gateway. The purchase only
// runs when the approved amount matches the order.
func (s *CheckoutService) Confirm(ctx context.Context, guestToken, token, payerID string) (*ConfirmResult, error) {
	const op = "GetExpressCheckoutDetails"

	o, err := s.orders.FindCurrent(ctx, guestToken)
	if err != nil {
		return nil, err
	}
	if err := validateReturnParams(token, payerID); err != nil {
		return nil, err
	}
	expected := payment.Amount{ValueCents: o.Total(), Currency: o.Currency}

	p, err := s.paymentFor(ctx, o, token, expected)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case payment.StatusCompleted:
		return &ConfirmResult{Status: ConfirmCompleted, Payment: p, Expected: expected, Reported: p.Amount}, nil
	case payment.StatusFailed:
		return nil, domainErrors.NewDomainError(
			"checkout_closed",
			"this checkout has already failed; please start again",
			domainErrors.ErrInvalidStateTransition,
		)
	}

	if err := p.Source.Approve(payerID); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("record approval: %w", err)
	}

	details, err := s.gateway.GetExpressCheckoutDetails(ctx, token)
	if err != nil {
		s.recorder.CheckoutStep("confirm", providers.Outcome(false, err))
		return nil, classifyProviderError(s.logger, op, err)
	}
	if !details.Success() {
		s.recorder.CheckoutStep("confirm", providers.OutcomeDeclined)
		return nil, mapProviderFailure(s.logger, op, details.Response)
	}

	reported := details.Details.Total()
	if !reported.Equal(expected) {
		s.recorder.CheckoutStep("confirm", "review_required")
		s.logger.Warn().
			Str("order_number", o.Number).
			Str("token", token).
			Str("expected", expected.String()).
			Str("reported", reported.String()).
			Msg("approved amount differs from order total")
		return &ConfirmResult{Status: ConfirmReviewRequired, Payment: p, Expected: expected, Reported: reported}, nil
	}

	p, err = s.purchaser.PurchaseWithDetails(ctx, p, details, PurchaseOptions{})
	if err != nil {
		s.recorder.CheckoutStep("confirm", providers.Outcome(false, err))
		return nil, err
	}

	s.recorder.CheckoutStep("confirm", providers.OutcomeSuccess)
	return &ConfirmResult{Status: ConfirmCompleted, Payment: p, Expected: expected, Reported: reported}, nil
}

// maxReturnParamLen bounds the token and payer id the gateway appends to
// the return URL.
const maxReturnParamLen = 64

func validateReturnParams(token, payerID string) error {
	switch {
	case token == "":
		return domainErrors.NewValidationError("token", "is required")
	case len(token) > maxReturnParamLen:
		return domainErrors.NewValidationError("token", "is too long")
	case payerID == "":
		return domainErrors.NewValidationError("payer_id", "is required")
	case len(payerID) > maxReturnParamLen:
		return domainErrors.NewValidationError("payer_id", "is too long")
	}
	return nil
}

// paymentFor finds the payment the token belongs to, creating it when the
// handshake was started outside this service.
func (s *CheckoutService) paymentFor(ctx context.Context, o *order.Order, token string, amount payment.Amount) (*payment.Payment, error) {
	p, err := s.paymentRepo.GetByToken(ctx, token)
	if err == nil {
		if p.OrderID != o.ID {
			return nil, domainErrors.NewValidationError("token", "does not belong to the current order")
		}
		return p, nil
	}
	if !errors.Is(err, domainErrors.ErrPaymentNotFound) {
		return nil, err
	}

	p, err = payment.NewPayment(o.ID, o.Number, amount, token)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// Cancel is where the gateway sends a shopper who backed out. The order is
// left untouched; a pending handshake for the token is closed.
func (s *CheckoutService) Cancel(ctx context.Context, guestToken, token string) error {
	o, err := s.orders.FindCurrent(ctx, guestToken)
	if err != nil {
		return err
	}
	s.recorder.CheckoutStep("cancel", providers.OutcomeSuccess)
	if token == "" {
		return nil
	}

	p, err := s.paymentRepo.GetByToken(ctx, token)
	if errors.Is(err, domainErrors.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.OrderID != o.ID || p.Status != payment.StatusCheckout {
		return nil
	}

	if err := p.MarkFailed("checkout canceled by shopper"); err != nil {
		return err
	}
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		return s.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, payment.EventCheckoutCanceled, map[string]any{
			"token": token,
		}))
	})
}
