package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InvalidRefundAmountMessage is shown to the operator when the refund amount
// cannot be parsed.
const InvalidRefundAmountMessage = "The partial refund amount is not valid"

const defaultRefundLockTTL = 60 * time.Second

// PaymentService captures approved checkouts and refunds captured payments.
type PaymentService struct {
	paymentRepo payment.Repository
	outboxRepo  outbox.Repository
	txManager   TransactionManager
	gateway     providers.Provider
	locker      payment.Locker
	recorder    Recorder
	logger      zerolog.Logger
	lockTTL     time.Duration
	now         func() time.Time

	mu           sync.RWMutex
	buttonSource string
}

type PaymentServiceConfig struct {
	// ButtonSource is the default partner attribution code.
	ButtonSource  string
	RefundLockTTL time.Duration
}

// NewPaymentService creates a new PaymentService. locker and recorder may be nil.
func NewPaymentService(
	paymentRepo payment.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gateway providers.Provider,
	locker payment.Locker,
	recorder Recorder,
	logger zerolog.Logger,
	cfg PaymentServiceConfig,
) *PaymentService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ttl := cfg.RefundLockTTL
	if ttl <= 0 {
		ttl = defaultRefundLockTTL
	}
	return &PaymentService{
		paymentRepo:  paymentRepo,
		outboxRepo:   outboxRepo,
		txManager:    txManager,
		gateway:      gateway,
		locker:       locker,
		recorder:     recorder,
		logger:       logger.With().Str("component", "payment_service").Logger(),
		lockTTL:      ttl,
		now:          time.Now,
		buttonSource: cfg.ButtonSource,
	}
}

// SetButtonSource replaces the process-wide attribution code. An empty code
// clears it.
func (s *PaymentService) SetButtonSource(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttonSource = strings.TrimSpace(code)
}

func (s *PaymentService) ButtonSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buttonSource
}

// GetPayment loads a payment with its source.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

// Purchase captures a payment whose shopper has already approved it, fetching
// the checkout details from the gateway first.
func (s *PaymentService) Purchase(ctx context.Context, paymentID uuid.UUID, opts PurchaseOptions) (*payment.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Source == nil {
		return nil, domainErrors.NewDomainError("missing_source", "payment has no express checkout source", domainErrors.ErrInvalidInput)
	}

	const op = "GetExpressCheckoutDetails"
	details, err := s.gateway.GetExpressCheckoutDetails(ctx, p.Source.Token)
	if err != nil {
		return nil, classifyProviderError(s.logger, op, err)
	}
	if !details.Success() {
		return nil, mapProviderFailure(s.logger, op, details.Response)
	}

	return s.PurchaseWithDetails(ctx, p, details, opts)
}

// PurchaseWithDetails captures a payment using checkout details the caller
// already fetched. The details are forwarded to the gateway unchanged.
func (s *PaymentService) PurchaseWithDetails(ctx context.Context, p *payment.Payment, details *providers.CheckoutDetails, opts PurchaseOptions) (*payment.Payment, error) {
	const op = "DoExpressCheckoutPayment"

	if p.Source == nil {
		return nil, domainErrors.NewDomainError("missing_source", "payment has no express checkout source", domainErrors.ErrInvalidInput)
	}

	payerID := p.Source.PayerID
	if payerID == "" {
		payerID = details.PayerID
	}
	if payerID == "" {
		return nil, domainErrors.NewValidationError("payer_id", "the shopper has not approved this checkout")
	}

	if p.Status == payment.StatusCheckout {
		if err := p.MarkProcessing(); err != nil {
			return nil, err
		}
		if err := s.paymentRepo.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("mark processing: %w", err)
		}
	}
	if p.Status != payment.StatusProcessing {
		return nil, domainErrors.NewDomainError(
			"invalid_purchase",
			fmt.Sprintf("cannot purchase payment in status %s", p.Status),
			domainErrors.ErrInvalidStateTransition,
		)
	}

	buttonSource := s.ButtonSource()
	if opts.ButtonSource != nil {
		buttonSource = *opts.ButtonSource
	}

	resp, err := s.gateway.DoExpressCheckoutPayment(ctx, providers.DoExpressCheckoutPaymentRequest{
		PaymentAction: providers.PaymentActionSale,
		Token:         p.Source.Token,
		PayerID:       payerID,
		Details:       details.Details,
		ButtonSource:  buttonSource,
	})
	if err != nil {
		// The outcome is unknown, so the payment stays in processing and the
		// shopper may confirm again.
		classified := classifyProviderError(s.logger, op, err)
		s.addEvent(ctx, p.ID, payment.EventPurchaseFailed, map[string]any{
			"error":   classified.Error(),
			"outcome": providers.Outcome(false, classified),
		})
		return nil, classified
	}

	if !resp.Success() {
		gerr := mapProviderFailure(s.logger, op, resp.Response)
		if failErr := s.failPurchase(ctx, p, gerr); failErr != nil {
			return nil, failErr
		}
		return nil, gerr
	}

	txID := resp.TransactionID()
	if txID == "" {
		return nil, &domainErrors.ProtocolError{Op: op, Reason: "successful response without transaction id"}
	}

	if err := p.MarkCompleted(txID); err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := s.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, payment.EventPurchaseSucceeded, map[string]any{
			"transaction_id": txID,
			"payer_id":       payerID,
			"amount_cents":   p.Amount.ValueCents,
			"correlation_id": resp.CorrelationID,
		})); err != nil {
			return err
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewEntry(outbox.AggregatePayment, p.ID, outbox.EventPaymentCompleted, map[string]any{
			"payment_id":     p.ID.String(),
			"order_id":       p.OrderID.String(),
			"order_number":   p.OrderNumber,
			"transaction_id": txID,
			"amount_cents":   p.Amount.ValueCents,
			"currency":       p.Amount.Currency,
		}))
	})
	if err != nil {
		// The gateway has the money; losing this write must be loud.
		s.logger.Error().Err(err).
			Str("payment_id", p.ID.String()).
			Str("transaction_id", txID).
			Msg("purchase succeeded at gateway but could not be recorded")
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("order_number", p.OrderNumber).
		Str("transaction_id", txID).
		Msg("purchase completed")

	return p, nil
}

func (s *PaymentService) failPurchase(ctx context.Context, p *payment.Payment, gerr *domainErrors.GatewayError) error {
	if err := p.MarkFailed(gerr.Message); err != nil {
		return err
	}
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := s.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, payment.EventPurchaseFailed, map[string]any{
			"error":    gerr.Message,
			"messages": gerr.Messages,
		})); err != nil {
			return err
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewEntry(outbox.AggregatePayment, p.ID, outbox.EventPaymentFailed, map[string]any{
			"payment_id":   p.ID.String(),
			"order_number": p.OrderNumber,
			"error":        gerr.Message,
		}))
	})
}

// Refund returns money for a captured payment. An empty amount refunds what
// was captured. Refunds are not idempotent: every call reaches the gateway.
func (s *PaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amountText string) (*RefundResult, error) {
	const op = "RefundTransaction"

	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.Captured() {
		return nil, domainErrors.NewDomainError(
			"not_captured",
			fmt.Sprintf("cannot refund payment in status %s", p.Status),
			domainErrors.ErrPaymentNotCaptured,
		)
	}

	amount := p.Amount
	if strings.TrimSpace(amountText) != "" {
		amount, err = payment.ParseAmount(amountText, p.Amount.Currency)
		if err != nil {
			s.recorder.Refund("unknown", "invalid_amount")
			return nil, domainErrors.NewValidationError("amount", InvalidRefundAmountMessage)
		}
	}
	refundType := payment.ClassifyRefund(amount, p.Amount)

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, "refund:"+p.Source.ID.String(), s.lockTTL)
		if err != nil {
			if errors.Is(err, domainErrors.ErrLockAcquisitionFailed) {
				return nil, domainErrors.NewDomainError("refund_in_progress", "another refund for this payment is in progress", err)
			}
			return nil, fmt.Errorf("acquire refund lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("release refund lock")
			}
		}()
	}

	resp, err := s.gateway.RefundTransaction(ctx, providers.RefundRequest{
		TransactionID: p.Source.TransactionID,
		RefundType:    refundType,
		Amount:        &amount,
		RefundSource:  providers.RefundSourceAny,
	})
	if err != nil {
		s.recorder.Refund(string(refundType), providers.Outcome(false, err))
		return nil, classifyProviderError(s.logger, op, err)
	}
	if !resp.Success() {
		gerr := mapProviderFailure(s.logger, op, resp.Response)
		s.recorder.Refund(string(refundType), providers.OutcomeDeclined)
		s.addEvent(ctx, p.ID, payment.EventRefundFailed, map[string]any{
			"error":        gerr.Message,
			"refund_type":  string(refundType),
			"amount_cents": amount.ValueCents,
		})
		return nil, gerr
	}

	if err := p.Source.RecordRefund(resp.RefundTransactionID, refundType, s.now()); err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := s.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, payment.EventRefundSucceeded, map[string]any{
			"refund_transaction_id": resp.RefundTransactionID,
			"refund_type":           string(refundType),
			"amount_cents":          amount.ValueCents,
			"correlation_id":        resp.CorrelationID,
		})); err != nil {
			return err
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewEntry(outbox.AggregatePayment, p.ID, outbox.EventPaymentRefunded, map[string]any{
			"payment_id":            p.ID.String(),
			"order_number":          p.OrderNumber,
			"refund_transaction_id": resp.RefundTransactionID,
			"refund_type":           string(refundType),
			"amount_cents":          amount.ValueCents,
			"currency":              amount.Currency,
		}))
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("payment_id", p.ID.String()).
			Str("refund_transaction_id", resp.RefundTransactionID).
			Msg("refund succeeded at gateway but could not be recorded")
		return nil, fmt.Errorf("record refund: %w", err)
	}

	s.recorder.Refund(string(refundType), providers.OutcomeSuccess)
	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("refund_type", string(refundType)).
		Str("amount", amount.String()).
		Msg("refund completed")

	return &RefundResult{
		Payment:             p,
		Amount:              amount,
		RefundType:          refundType,
		RefundTransactionID: resp.RefundTransactionID,
	}, nil
}

// addEvent records an audit event outside any transaction. Failures are
// logged, not returned, so they never mask the gateway outcome.
func (s *PaymentService) addEvent(ctx context.Context, paymentID uuid.UUID, eventType string, data map[string]any) {
	if err := s.paymentRepo.AddEvent(ctx, payment.NewEvent(paymentID, eventType, data)); err != nil {
		s.logger.Warn().Err(err).Str("payment_id", paymentID.String()).Str("event", eventType).Msg("add payment event")
	}
}
