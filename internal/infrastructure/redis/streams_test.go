package redis

import (
	"encoding/json"
	"testing"

	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamValues(t *testing.T) {
	paymentID := uuid.New()
	entry := outbox.NewEntry(outbox.AggregatePayment, paymentID, outbox.EventPaymentRefunded, map[string]any{
		"refund_transaction_id": "RF-1",
		"refund_type":           "Partial",
	})

	values, err := streamValues(entry)
	require.NoError(t, err)

	assert.Equal(t, entry.ID.String(), values["event_id"])
	assert.Equal(t, "payment.refunded", values["event_type"])
	assert.Equal(t, "payment", values["aggregate_type"])
	assert.Equal(t, paymentID.String(), values["aggregate_id"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &payload))
	assert.Equal(t, "RF-1", payload["refund_transaction_id"])
}

func TestStreamValues_NilPayload(t *testing.T) {
	entry := outbox.NewEntry(outbox.AggregatePayment, uuid.New(), outbox.EventPaymentFailed, nil)

	values, err := streamValues(entry)
	require.NoError(t, err)
	assert.Equal(t, "null", values["payload"])
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "lock:refund:abc", lockKey("refund:abc"))
}
