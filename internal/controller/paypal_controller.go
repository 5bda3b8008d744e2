package controller

import (
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/service"
)

const (
	GuestTokenCookie = "guest_token"
	GuestTokenHeader = "X-Guest-Token"
)

// PaypalController serves the shopper side of the redirect handshake.
type PaypalController struct {
	checkout *service.CheckoutService
}

func NewPaypalController(checkout *service.CheckoutService) *PaypalController {
	return &PaypalController{checkout: checkout}
}

// Express handles GET /paypal/express and redirects the shopper to the
// gateway's approval page.
func (h *PaypalController) Express(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Express(r.Context(), guestToken(r))
	if err != nil {
		status, resp := errorResponse(err)
		var gatewayErr *domainErrors.GatewayError
		if errors.As(err, &gatewayErr) {
			resp.Error = MessagePayPalFailed + gatewayErr.Message
		}
		writeJSON(w, status, resp)
		return
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Confirm handles GET /paypal/confirm, the return URL. The query is checked
// by the service once the current order is known.
func (h *PaypalController) Confirm(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Confirm(r.Context(), guestToken(r), r.URL.Query().Get("token"), r.URL.Query().Get("PayerID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConfirmResponse(result))
}

// Cancel handles GET /paypal/cancel, where the shopper lands after backing
// out at the gateway.
func (h *PaypalController) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Cancel(r.Context(), guestToken(r), r.URL.Query().Get("token")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NoticeResponse{Status: "canceled", Message: MessageCheckoutCancel})
}

func guestToken(r *http.Request) string {
	if c, err := r.Cookie(GuestTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(GuestTokenHeader)
}
