package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/providers"
	"github.com/cassiomorais/expresscheckout/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProviderFailure_SurfacesFirstMessageAndLogsAll(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	gerr := mapProviderFailure(logger, "DoExpressCheckoutPayment", testutil.FailedResponse("First problem", "Second problem"))

	assert.Equal(t, "First problem", gerr.Message)
	assert.Equal(t, []string{"First problem", "Second problem"}, gerr.Messages)
	assert.Equal(t, "DoExpressCheckoutPayment", gerr.Op)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"long_message":"First problem"`)
	assert.Contains(t, lines[1], `"long_message":"Second problem"`)
	assert.Contains(t, lines[1], `"correlation_id":"corr-1"`)
}

func TestMapProviderFailure_WithoutMessages(t *testing.T) {
	gerr := mapProviderFailure(zerolog.Nop(), "RefundTransaction", providers.Response{Ack: providers.AckFailure})
	assert.NotEmpty(t, gerr.Message)
	assert.True(t, errors.Is(gerr, domainErrors.ErrProviderRejected))
}

func TestMapProviderFailure_FallsBackToShortMessage(t *testing.T) {
	resp := providers.Response{
		Ack: providers.AckFailure,
		Errors: []providers.ProcessorError{
			{Code: "10002", ShortMessage: "Security error"},
		},
	}
	gerr := mapProviderFailure(zerolog.Nop(), "SetExpressCheckout", resp)
	assert.Equal(t, "Security error", gerr.Message)
}

func TestClassifyProviderError(t *testing.T) {
	netErr := &domainErrors.NetworkError{Op: "op"}
	protoErr := &domainErrors.ProtocolError{Op: "op", Reason: "missing ACK"}
	valErr := domainErrors.NewValidationError("amount", "required")

	assert.Same(t, netErr, classifyProviderError(zerolog.Nop(), "op", netErr))
	assert.Same(t, protoErr, classifyProviderError(zerolog.Nop(), "op", protoErr))
	assert.Same(t, valErr, classifyProviderError(zerolog.Nop(), "op", valErr))

	err := classifyProviderError(zerolog.Nop(), "RefundTransaction", errors.New("boom"))
	var wrapped *domainErrors.NetworkError
	require.True(t, errors.As(err, &wrapped))
	assert.Equal(t, "RefundTransaction", wrapped.Op)
	assert.EqualError(t, wrapped.Err, "boom")
}
