package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err     error
	status  int
	code    string
	message string // replaces err.Error() when set
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{domainErrors.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "gateway_unreachable", "the payment gateway could not be reached, please try again"},
	{domainErrors.ErrProviderProtocol, http.StatusBadGateway, "gateway_protocol_error", "the payment gateway sent an unexpected response"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusConflict, "refund_in_progress", "another refund for this payment is in progress"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition", ""},
	{domainErrors.ErrPaymentNotCaptured, http.StatusConflict, "not_captured", ""},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", ""},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden", ""},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	writeJSON(w, status, resp)
}

// errorResponse maps err to a status and a body that is safe to show. Raw
// transport errors never reach the body.
func errorResponse(err error) (int, ErrorResponse) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorResponse{
			Error: validationErr.Message,
			Code:  "validation_error",
			Field: validationErr.Field,
		}
	}

	var gatewayErr *domainErrors.GatewayError
	if errors.As(err, &gatewayErr) {
		return http.StatusUnprocessableEntity, ErrorResponse{Error: gatewayErr.Message, Code: "gateway_error"}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp := ErrorResponse{Error: err.Error(), Code: m.code}
			var domainErr *domainErrors.DomainError
			if errors.As(err, &domainErr) {
				resp.Error = domainErr.Message
			}
			if m.message != "" {
				resp.Error = m.message
			}
			return m.status, resp
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		return http.StatusUnprocessableEntity, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code}
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"}
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
