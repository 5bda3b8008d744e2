package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

// StreamPublisher relays outbox entries onto a Redis stream for downstream
// consumers (fulfilment, accounting).
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Stream() string {
	return p.stream
}

// Publish appends the entry to the stream. The entry id travels with the
// message so consumers can drop duplicates after a relay retry.
func (p *StreamPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	values, err := streamValues(entry)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", entry.EventType, err)
	}
	return nil
}

func streamValues(entry *outbox.Entry) (map[string]any, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return map[string]any{
		"event_id":       entry.ID.String(),
		"event_type":     entry.EventType,
		"aggregate_type": entry.AggregateType,
		"aggregate_id":   entry.AggregateID.String(),
		"payload":        string(payload),
		"created_at":     entry.CreatedAt.Unix(),
	}, nil
}
