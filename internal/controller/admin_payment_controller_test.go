package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/cassiomorais/expresscheckout/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundPath(id uuid.UUID) string {
	return "/admin/payments/" + id.String() + "/paypal_refund"
}

func TestAdminGetPayment(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)

	rec := f.do(adminRequest(t, http.MethodGet, "/admin/payments/"+p.ID.String(), ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PaymentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, p.ID.String(), resp.ID)
	assert.Equal(t, "23.20", resp.Amount)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Source)
	assert.Equal(t, p.Source.TransactionID, resp.Source.TransactionID)
	assert.Equal(t, "None", resp.Source.RefundType)
}

func TestAdminGetPayment_InvalidID(t *testing.T) {
	f := setupRouter(t)

	rec := f.do(adminRequest(t, http.MethodGet, "/admin/payments/not-a-uuid", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", decodeError(t, rec).Field)
}

func TestAdminGetPayment_NotFound(t *testing.T) {
	f := setupRouter(t)

	rec := f.do(adminRequest(t, http.MethodGet, "/admin/payments/"+uuid.NewString(), ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRefund_Full(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)
	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return &providers.RefundResponse{Response: providers.Response{Ack: providers.AckSuccess}, RefundTransactionID: "RF-1"}, nil
	}

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{"refund_amount":""}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RefundResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "PayPal refund successful", resp.Message)
	assert.Equal(t, "RF-1", resp.RefundTransactionID)
	assert.Equal(t, "Full", resp.RefundType)
	assert.Equal(t, "23.20", resp.Amount)
	assert.Equal(t, "refunded", resp.Payment.Source.State)

	assert.Equal(t, payment.RefundFull, f.gateway.RefundRequests[0].RefundType)
	assert.Equal(t, []string{"payment.refunded"}, f.outboxRepo.EventTypes())
}

func TestAdminRefund_Partial(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{"refund_amount":"5"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RefundResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Partial", resp.RefundType)
	assert.Equal(t, "5.00", resp.Amount)
	assert.Equal(t, int64(500), f.gateway.RefundRequests[0].Amount.ValueCents)
}

func TestAdminRefund_InvalidAmount(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{"refund_amount":"lol"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "PayPal refund unsuccessful (The partial refund amount is not valid)", resp.Error)
	assert.Equal(t, "amount", resp.Field)
	assert.Empty(t, f.gateway.RefundRequests)
}

func TestAdminRefund_Declined(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)
	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return &providers.RefundResponse{Response: testutil.FailedResponse("The partial refund amount must be less than or equal to the remaining amount")}, nil
	}

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{"refund_amount":"10"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t,
		"PayPal refund unsuccessful (The partial refund amount must be less than or equal to the remaining amount)",
		decodeError(t, rec).Error)

	stored, _ := f.paymentRepo.GetByID(context.Background(), p.ID)
	assert.Empty(t, stored.Source.RefundTransactionID)
	assert.Equal(t, payment.SourceCompleted, stored.Source.State)
}

func TestAdminRefund_Unreachable(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)
	f.gateway.RefundTransactionFunc = func(ctx context.Context, req providers.RefundRequest) (*providers.RefundResponse, error) {
		return nil, errors.New("read tcp: connection reset by peer")
	}

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "gateway_unreachable", resp.Code)
	assert.NotContains(t, resp.Error, "connection reset")
}

func TestAdminRefund_InProgress(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCapturedPayment(2320, "USD")
	f.paymentRepo.AddPayment(p)
	_, err := f.locker.Acquire(context.Background(), "refund:"+p.Source.ID.String(), 0)
	require.NoError(t, err)

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "refund_in_progress", decodeError(t, rec).Code)
	assert.Empty(t, f.gateway.RefundRequests)
}

func TestAdminRefund_NotCaptured(t *testing.T) {
	f := setupRouter(t)
	p := testutil.NewCheckoutPayment(f.order.ID, 2320, "USD", "EC-1")
	f.paymentRepo.AddPayment(p)

	rec := f.do(adminRequest(t, http.MethodPost, refundPath(p.ID), `{}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminButtonSource(t *testing.T) {
	f := setupRouter(t)

	rec := f.do(adminRequest(t, http.MethodPut, "/admin/gateway/button_source", `{"button_source":"Partner_Cart_EC"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"button_source":"Partner_Cart_EC"}`, rec.Body.String())
	assert.Equal(t, "Partner_Cart_EC", f.payments.ButtonSource())

	rec = f.do(adminRequest(t, http.MethodDelete, "/admin/gateway/button_source", ""))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.payments.ButtonSource())
}

func TestAdminButtonSource_Invalid(t *testing.T) {
	f := setupRouter(t)

	rec := f.do(adminRequest(t, http.MethodPut, "/admin/gateway/button_source", `{"button_source":""}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Shop_Cart_EC", f.payments.ButtonSource())
}
