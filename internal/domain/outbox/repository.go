package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry, normally inside the caller's transaction
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns the oldest pending entries up to limit
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed increments the retry count; the entry becomes failed once
	// it runs out of retries
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
