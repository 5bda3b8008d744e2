package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/cassiomorais/expresscheckout/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

type recordedStep struct {
	name    string
	outcome string
}

type fakeRecorder struct {
	mu      sync.Mutex
	steps   []recordedStep
	refunds []recordedStep
}

func (r *fakeRecorder) CheckoutStep(step, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, recordedStep{step, outcome})
}

func (r *fakeRecorder) Refund(refundType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds = append(r.refunds, recordedStep{refundType, outcome})
}

type paymentFixture struct {
	svc         *PaymentService
	paymentRepo *testutil.MockPaymentRepository
	outboxRepo  *testutil.MockOutboxRepository
	gateway     *testutil.MockGateway
	locker      *testutil.MockLocker
	recorder    *fakeRecorder
}

func setupPaymentService(buttonSource string) *paymentFixture {
	f := &paymentFixture{
		paymentRepo: testutil.NewMockPaymentRepository(),
		outboxRepo:  &testutil.MockOutboxRepository{},
		gateway:     &testutil.MockGateway{},
		locker:      testutil.NewMockLocker(),
		recorder:    &fakeRecorder{},
	}
	f.svc = NewPaymentService(
		f.paymentRepo,
		f.outboxRepo,
		testutil.NewMockTransactionManager(),
		f.gateway,
		f.locker,
		f.recorder,
		zerolog.Nop(),
		PaymentServiceConfig{ButtonSource: buttonSource},
	)
	return f
}

func approvedPayment(t *testing.T, f *paymentFixture, amountCents int64) *payment.Payment {
	t.Helper()
	p := testutil.NewCheckoutPayment(uuid.New(), amountCents, "USD", "EC-APPROVED")
	require.NoError(t, p.Source.Approve("PAYER-9"))
	f.paymentRepo.AddPayment(p)
	return p
}

func checkoutDetails(total int64) *providers.CheckoutDetails {
	return &providers.CheckoutDetails{
		Response: providers.Response{Ack: providers.AckSuccess},
		Token:    "EC-APPROVED",
		PayerID:  "PAYER-9",
		Details: providers.PaymentDetails{
			Currency:   "USD",
			OrderTotal: total,
			InvoiceID:  "R100000001",
			Breakdown: &providers.Breakdown{
				ItemTotal: total,
				Items: []providers.Item{
					{Name: "Ruby Mug", Number: "MUG-1", Quantity: 1, AmountCents: total},
				},
			},
		},
	}
}

// --- Purchase Tests ---

func TestPurchaseWithDetails_Success(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := approvedPayment(t, f, 1000)

	f.gateway.DoExpressCheckoutPaymentFunc = func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
		return testutil.SuccessfulPurchase("12345678"), nil
	}

	got, err := f.svc.PurchaseWithDetails(ctx, p, checkoutDetails(1000), PurchaseOptions{})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.Equal(t, "12345678", got.Source.TransactionID)
	assert.Equal(t, payment.SourceCompleted, got.Source.State)
	assert.Equal(t, payment.HandshakeCompleted, got.Source.Handshake)
	assert.NotNil(t, got.CompletedAt)

	assert.Equal(t, []string{payment.EventPurchaseSucceeded}, f.paymentRepo.EventTypes(p.ID))
	assert.Equal(t, []string{outbox.EventPaymentCompleted}, f.outboxRepo.EventTypes())
}

func TestPurchaseWithDetails_ForwardsDetailsUnchanged(t *testing.T) {
	f := setupPaymentService("")
	p := approvedPayment(t, f, 1000)
	details := checkoutDetails(1000)

	_, err := f.svc.PurchaseWithDetails(context.Background(), p, details, PurchaseOptions{})
	require.NoError(t, err)

	require.Len(t, f.gateway.PurchaseRequests, 1)
	req := f.gateway.PurchaseRequests[0]
	assert.Equal(t, providers.PaymentActionSale, req.PaymentAction)
	assert.Equal(t, "EC-APPROVED", req.Token)
	assert.Equal(t, "PAYER-9", req.PayerID)
	assert.Equal(t, details.Details, req.Details)
}

func TestPurchaseWithDetails_ButtonSource(t *testing.T) {
	tests := []struct {
		name          string
		defaultSource string
		override      *string
		want          string
	}{
		{name: "no attribution", want: ""},
		{name: "process default", defaultSource: "Partner_SP", want: "Partner_SP"},
		{name: "per-call override", defaultSource: "Partner_SP", override: testutil.StringPtr("Other_SP"), want: "Other_SP"},
		{name: "explicitly empty override", defaultSource: "Partner_SP", override: testutil.StringPtr(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupPaymentService(tt.defaultSource)
			p := approvedPayment(t, f, 1000)

			_, err := f.svc.PurchaseWithDetails(context.Background(), p, checkoutDetails(1000), PurchaseOptions{ButtonSource: tt.override})
			require.NoError(t, err)
			require.Len(t, f.gateway.PurchaseRequests, 1)
			assert.Equal(t, tt.want, f.gateway.PurchaseRequests[0].ButtonSource)
		})
	}
}

func TestSetButtonSource(t *testing.T) {
	f := setupPaymentService("")
	f.svc.SetButtonSource("  Partner_SP ")
	assert.Equal(t, "Partner_SP", f.svc.ButtonSource())

	p := approvedPayment(t, f, 1000)
	_, err := f.svc.PurchaseWithDetails(context.Background(), p, checkoutDetails(1000), PurchaseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Partner_SP", f.gateway.PurchaseRequests[0].ButtonSource)

	f.svc.SetButtonSource("")
	assert.Empty(t, f.svc.ButtonSource())
}

func TestPurchaseWithDetails_Declined(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := approvedPayment(t, f, 1000)

	f.gateway.DoExpressCheckoutPaymentFunc = func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
		return &providers.PaymentResponse{
			Response: testutil.FailedResponse("Instruct the customer to retry.", "Second message"),
		}, nil
	}

	got, err := f.svc.PurchaseWithDetails(ctx, p, checkoutDetails(1000), PurchaseOptions{})
	require.Error(t, err)
	assert.Nil(t, got)

	var gerr *domainErrors.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "Instruct the customer to retry.", gerr.Message)
	assert.True(t, errors.Is(err, domainErrors.ErrProviderRejected))

	stored, err := f.paymentRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, stored.Status)
	assert.Empty(t, stored.Source.TransactionID)
	assert.Equal(t, payment.HandshakeFailed, stored.Source.Handshake)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "Instruct the customer to retry.", *stored.LastError)

	assert.Equal(t, []string{payment.EventPurchaseFailed}, f.paymentRepo.EventTypes(p.ID))
	assert.Equal(t, []string{outbox.EventPaymentFailed}, f.outboxRepo.EventTypes())
}

func TestPurchaseWithDetails_NetworkErrorLeavesProcessing(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := approvedPayment(t, f, 1000)

	f.gateway.DoExpressCheckoutPaymentFunc = func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
		return nil, &domainErrors.NetworkError{Op: "DoExpressCheckoutPayment", Err: context.DeadlineExceeded}
	}

	_, err := f.svc.PurchaseWithDetails(ctx, p, checkoutDetails(1000), PurchaseOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainErrors.ErrProviderUnavailable))
	assert.False(t, errors.Is(err, domainErrors.ErrProviderRejected))

	var gerr *domainErrors.GatewayError
	assert.False(t, errors.As(err, &gerr))

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusProcessing, stored.Status)
	assert.Empty(t, stored.Source.TransactionID)
	assert.Empty(t, f.outboxRepo.Entries)
}

func TestPurchaseWithDetails_UnknownErrorIsClassifiedAsNetwork(t *testing.T) {
	f := setupPaymentService("")
	p := approvedPayment(t, f, 1000)

	f.gateway.DoExpressCheckoutPaymentFunc = func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
		return nil, errors.New("connection reset by peer")
	}

	_, err := f.svc.PurchaseWithDetails(context.Background(), p, checkoutDetails(1000), PurchaseOptions{})
	var netErr *domainErrors.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "DoExpressCheckoutPayment", netErr.Op)
}

func TestPurchaseWithDetails_SuccessWithoutTransactionID(t *testing.T) {
	f := setupPaymentService("")
	p := approvedPayment(t, f, 1000)

	f.gateway.DoExpressCheckoutPaymentFunc = func(ctx context.Context, req providers.DoExpressCheckoutPaymentRequest) (*providers.PaymentResponse, error) {
		return &providers.PaymentResponse{Response: providers.Response{Ack: providers.AckSuccess}}, nil
	}

	_, err := f.svc.PurchaseWithDetails(context.Background(), p, checkoutDetails(1000), PurchaseOptions{})
	assert.True(t, errors.Is(err, domainErrors.ErrProviderProtocol))
}

func TestPurchaseWithDetails_RequiresPayer(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCheckoutPayment(uuid.New(), 1000, "USD", "EC-NOPAYER")
	f.paymentRepo.AddPayment(p)

	details := checkoutDetails(1000)
	details.PayerID = ""

	_, err := f.svc.PurchaseWithDetails(context.Background(), p, details, PurchaseOptions{})
	var valErr *domainErrors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "payer_id", valErr.Field)
	assert.Empty(t, f.gateway.PurchaseRequests)
}

func TestPurchaseWithDetails_CompletedPaymentRejected(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	_, err := f.svc.PurchaseWithDetails(context.Background(), p, checkoutDetails(1000), PurchaseOptions{})
	assert.True(t, errors.Is(err, domainErrors.ErrInvalidStateTransition))
	assert.Empty(t, f.gateway.PurchaseRequests)
}

func TestPurchase_FetchesDetailsFirst(t *testing.T) {
	f := setupPaymentService("")
	p := approvedPayment(t, f, 1000)

	f.gateway.GetExpressCheckoutDetailsFunc = func(ctx context.Context, token string) (*providers.CheckoutDetails, error) {
		return checkoutDetails(1000), nil
	}

	got, err := f.svc.Purchase(context.Background(), p.ID, PurchaseOptions{})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.Equal(t, []string{"EC-APPROVED"}, f.gateway.DetailsRequests)
	assert.Equal(t, checkoutDetails(1000).Details, f.gateway.PurchaseRequests[0].Details)
}

func TestPurchase_DetailsDeclined(t *testing.T) {
	f := setupPaymentService("")
	p := approvedPayment(t, f, 1000)

	f.gateway.GetExpressCheckoutDetailsFunc = func(ctx context.Context, token string) (*providers.CheckoutDetails, error) {
		return &providers.CheckoutDetails{Response: testutil.FailedResponse("Token expired")}, nil
	}

	_, err := f.svc.Purchase(context.Background(), p.ID, PurchaseOptions{})
	var gerr *domainErrors.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "Token expired", gerr.Message)
	assert.Empty(t, f.gateway.PurchaseRequests)
}

func TestPurchase_NotFound(t *testing.T) {
	f := setupPaymentService("")
	_, err := f.svc.Purchase(context.Background(), uuid.New(), PurchaseOptions{})
	assert.True(t, errors.Is(err, domainErrors.ErrNotFound))
}

// --- Refund Tests ---

func TestRefund_Full(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	refundedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return refundedAt }

	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return &providers.RefundResponse{
			Response:            providers.Response{Ack: providers.AckSuccess},
			RefundTransactionID: "R-1",
		}, nil
	}

	result, err := f.svc.Refund(ctx, p.ID, "10.00")
	require.NoError(t, err)
	assert.Equal(t, payment.RefundFull, result.RefundType)
	assert.Equal(t, "R-1", result.RefundTransactionID)
	assert.Equal(t, int64(1000), result.Amount.ValueCents)

	require.Len(t, f.gateway.RefundRequests, 1)
	req := f.gateway.RefundRequests[0]
	assert.Equal(t, p.Source.TransactionID, req.TransactionID)
	assert.Equal(t, payment.RefundFull, req.RefundType)
	assert.Equal(t, providers.RefundSourceAny, req.RefundSource)
	require.NotNil(t, req.Amount)
	assert.Equal(t, payment.Amount{ValueCents: 1000, Currency: "USD"}, *req.Amount)

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	assert.Equal(t, "R-1", stored.Source.RefundTransactionID)
	assert.Equal(t, payment.RefundFull, stored.Source.RefundType)
	require.NotNil(t, stored.Source.RefundedAt)
	assert.Equal(t, refundedAt, *stored.Source.RefundedAt)

	assert.Equal(t, []string{payment.EventRefundSucceeded}, f.paymentRepo.EventTypes(p.ID))
	assert.Equal(t, []string{outbox.EventPaymentRefunded}, f.outboxRepo.EventTypes())
	assert.Equal(t, []recordedStep{{"Full", providers.OutcomeSuccess}}, f.recorder.refunds)
}

func TestRefund_EmptyAmountRefundsCapturedTotal(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)

	result, err := f.svc.Refund(context.Background(), p.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, payment.RefundFull, result.RefundType)
	assert.Equal(t, int64(2320), f.gateway.RefundRequests[0].Amount.ValueCents)
}

func TestRefund_Partial(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	result, err := f.svc.Refund(context.Background(), p.ID, "4.5")
	require.NoError(t, err)
	assert.Equal(t, payment.RefundPartial, result.RefundType)
	assert.Equal(t, int64(450), result.Amount.ValueCents)
	assert.Equal(t, payment.RefundPartial, f.gateway.RefundRequests[0].RefundType)
	assert.Equal(t, "4.50", f.gateway.RefundRequests[0].Amount.Format())
}

func TestRefund_InvalidAmount(t *testing.T) {
	for _, text := range []string{"lol", "abc", "-5", "0", "1e3", "10.505"} {
		t.Run(text, func(t *testing.T) {
			f := setupPaymentService("")
			p := testutil.NewCapturedPayment(1000, "USD")
			f.paymentRepo.AddPayment(p)

			_, err := f.svc.Refund(context.Background(), p.ID, text)
			require.Error(t, err)

			var valErr *domainErrors.ValidationError
			require.True(t, errors.As(err, &valErr))
			assert.Equal(t, "amount", valErr.Field)
			assert.Equal(t, "The partial refund amount is not valid", valErr.Message)
			assert.Empty(t, f.gateway.RefundRequests)
		})
	}
}

func TestRefund_Declined(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return &providers.RefundResponse{Response: testutil.FailedResponse("The partial refund amount must be less than or equal to the remaining amount")}, nil
	}

	_, err := f.svc.Refund(ctx, p.ID, "5")
	var gerr *domainErrors.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "The partial refund amount must be less than or equal to the remaining amount", gerr.Error())

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	assert.Empty(t, stored.Source.RefundTransactionID)
	assert.Nil(t, stored.Source.RefundedAt)
	assert.Equal(t, []string{payment.EventRefundFailed}, f.paymentRepo.EventTypes(p.ID))
	assert.Empty(t, f.outboxRepo.Entries)
	assert.False(t, f.locker.Held("refund:"+p.Source.ID.String()))
}

func TestRefund_NetworkError(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return nil, &domainErrors.NetworkError{Op: "RefundTransaction"}
	}

	_, err := f.svc.Refund(context.Background(), p.ID, "")
	assert.True(t, errors.Is(err, domainErrors.ErrProviderUnavailable))
	assert.Equal(t, []recordedStep{{"Full", providers.OutcomeUnreachable}}, f.recorder.refunds)
}

func TestRefund_NotCaptured(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCheckoutPayment(uuid.New(), 1000, "USD", "EC-PENDING")
	f.paymentRepo.AddPayment(p)

	_, err := f.svc.Refund(context.Background(), p.ID, "")
	assert.True(t, errors.Is(err, domainErrors.ErrPaymentNotCaptured))
	assert.Empty(t, f.gateway.RefundRequests)
}

func TestRefund_NotFound(t *testing.T) {
	f := setupPaymentService("")
	_, err := f.svc.Refund(context.Background(), uuid.New(), "")
	assert.True(t, errors.Is(err, domainErrors.ErrPaymentNotFound))
}

func TestRefund_LockHeld(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	lock, err := f.locker.Acquire(ctx, "refund:"+p.Source.ID.String(), time.Minute)
	require.NoError(t, err)
	defer lock.Release(ctx)

	_, err = f.svc.Refund(ctx, p.ID, "")
	var domErr *domainErrors.DomainError
	require.True(t, errors.As(err, &domErr))
	assert.Equal(t, "refund_in_progress", domErr.Code)
	assert.True(t, errors.Is(err, domainErrors.ErrLockAcquisitionFailed))
	assert.Empty(t, f.gateway.RefundRequests)
}

func TestRefund_RepeatedCallsAreNotDeduplicated(t *testing.T) {
	f := setupPaymentService("")
	ctx := context.Background()
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	_, err := f.svc.Refund(ctx, p.ID, "2")
	require.NoError(t, err)
	_, err = f.svc.Refund(ctx, p.ID, "2")
	require.NoError(t, err)

	assert.Len(t, f.gateway.RefundRequests, 2)
	assert.Equal(t, []string{"refund:" + p.Source.ID.String(), "refund:" + p.Source.ID.String()}, f.locker.Acquired)
}

func TestRefund_WithoutLocker(t *testing.T) {
	gateway := &testutil.MockGateway{}
	repo := testutil.NewMockPaymentRepository()
	svc := NewPaymentService(repo, &testutil.MockOutboxRepository{}, testutil.NewMockTransactionManager(), gateway, nil, nil, zerolog.Nop(), PaymentServiceConfig{})

	p := testutil.NewCapturedPayment(1000, "USD")
	repo.AddPayment(p)

	_, err := svc.Refund(context.Background(), p.ID, "")
	require.NoError(t, err)
	assert.Len(t, gateway.RefundRequests, 1)
}

func TestRefund_RecordFailureAfterGatewaySuccess(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	f.outboxRepo.InsertFunc = func(ctx context.Context, entry *outbox.Entry) error {
		return errors.New("db down")
	}

	_, err := f.svc.Refund(context.Background(), p.ID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record refund")
	assert.Len(t, f.gateway.RefundRequests, 1)
}

func TestGetPayment(t *testing.T) {
	f := setupPaymentService("")
	p := testutil.NewCapturedPayment(1000, "USD")
	f.paymentRepo.AddPayment(p)

	got, err := f.svc.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.GetPayment(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domainErrors.ErrNotFound))
}
