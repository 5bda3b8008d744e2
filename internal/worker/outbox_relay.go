package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/expresscheckout/internal/domain/outbox"
	"github.com/rs/zerolog"
)

// Publisher delivers one outbox entry downstream.
type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) error
	Stream() string
}

type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RelayObserver is satisfied by *observability.Metrics.
type RelayObserver interface {
	ObserveRelay(stream, status string, d time.Duration)
}

// OutboxRelay moves pending outbox entries to the event stream. Each batch is
// claimed and marked inside one transaction, so two relays never publish the
// same pending row concurrently.
type OutboxRelay struct {
	tx        TxRunner
	repo      outbox.Repository
	publisher Publisher
	observer  RelayObserver
	logger    zerolog.Logger
	batchSize int
	interval  time.Duration
}

func NewOutboxRelay(
	tx TxRunner,
	repo outbox.Repository,
	publisher Publisher,
	observer RelayObserver,
	logger zerolog.Logger,
	batchSize int,
	interval time.Duration,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelay{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		observer:  observer,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Str("stream", r.publisher.Stream()).Dur("interval", r.interval).Msg("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("outbox relay batch failed")
		}
	}
}

// RelayOnce processes a single batch and returns how many entries were
// published.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.repo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			start := time.Now()
			if err := r.publisher.Publish(ctx, entry); err != nil {
				r.observe("failed", start)
				r.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("retry_count", entry.RetryCount+1).
					Msg("failed to publish outbox entry")
				if err := r.repo.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.observe("success", start)
			published++
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) observe(status string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveRelay(r.publisher.Stream(), status, time.Since(start))
	}
}
