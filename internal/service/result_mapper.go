package service

import (
	"errors"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/rs/zerolog"
)

// mapProviderFailure turns a declined gateway answer into a GatewayError.
// Only the first message is surfaced; the rest are logged.
func mapProviderFailure(logger zerolog.Logger, op string, resp providers.Response) *domainErrors.GatewayError {
	for i, e := range resp.Errors {
		logger.Warn().
			Str("operation", op).
			Str("ack", string(resp.Ack)).
			Str("correlation_id", resp.CorrelationID).
			Int("index", i).
			Str("code", e.Code).
			Str("short_message", e.ShortMessage).
			Str("long_message", e.LongMessage).
			Str("severity", e.Severity).
			Msg("gateway declined request")
	}
	if len(resp.Errors) == 0 {
		logger.Warn().
			Str("operation", op).
			Str("ack", string(resp.Ack)).
			Str("correlation_id", resp.CorrelationID).
			Msg("gateway declined request without messages")
	}
	return domainErrors.NewGatewayError(op, resp.LongMessages())
}

// classifyProviderError makes sure nothing but the domain taxonomy leaves the
// service: network and protocol errors pass through, validation errors too,
// anything else is treated as the gateway being unreachable.
func classifyProviderError(logger zerolog.Logger, op string, err error) error {
	var (
		netErr   *domainErrors.NetworkError
		protoErr *domainErrors.ProtocolError
		valErr   *domainErrors.ValidationError
	)
	switch {
	case errors.As(err, &netErr):
		logger.Error().Err(err).Str("operation", op).Msg("gateway unreachable")
		return err
	case errors.As(err, &protoErr):
		logger.Error().Err(err).Str("operation", op).Msg("unexpected gateway response")
		return err
	case errors.As(err, &valErr):
		return err
	default:
		logger.Error().Err(err).Str("operation", op).Msg("gateway call failed")
		return &domainErrors.NetworkError{Op: op, Err: err}
	}
}
