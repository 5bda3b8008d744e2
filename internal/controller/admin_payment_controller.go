package controller

import (
	"net/http"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminPaymentController serves back-office operations on captured payments.
// Every handler runs behind RequireAuth and checks the operator role.
type AdminPaymentController struct {
	payments *service.PaymentService
	authz    *service.AuthzService
}

func NewAdminPaymentController(payments *service.PaymentService, authz *service.AuthzService) *AdminPaymentController {
	return &AdminPaymentController{payments: payments, authz: authz}
}

// Get handles GET /admin/payments/{id}
func (h *AdminPaymentController) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.VerifyOperator(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	id, ok := paymentID(w, r)
	if !ok {
		return
	}

	p, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// Refund handles POST /admin/payments/{id}/paypal_refund
func (h *AdminPaymentController) Refund(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.VerifyOperator(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	id, ok := paymentID(w, r)
	if !ok {
		return
	}

	var req RefundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.payments.Refund(r.Context(), id, req.RefundAmount)
	if err != nil {
		status, resp := errorResponse(err)
		resp.Error = MessageRefundUnsuccessful + " (" + resp.Error + ")"
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, RefundResponse{
		Message:             MessageRefundSuccessful,
		RefundTransactionID: result.RefundTransactionID,
		RefundType:          string(result.RefundType),
		Amount:              result.Amount.Format(),
		Currency:            result.Amount.Currency,
		Payment:             toPaymentResponse(result.Payment),
	})
}

// SetButtonSource handles PUT /admin/gateway/button_source
func (h *AdminPaymentController) SetButtonSource(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.VerifyOperator(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	var req ButtonSourceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.payments.SetButtonSource(req.ButtonSource)
	writeJSON(w, http.StatusOK, ButtonSourceResponse{ButtonSource: h.payments.ButtonSource()})
}

// ClearButtonSource handles DELETE /admin/gateway/button_source
func (h *AdminPaymentController) ClearButtonSource(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.VerifyOperator(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.payments.SetButtonSource("")
	w.WriteHeader(http.StatusNoContent)
}

func paymentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}
