package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const selectPayment = `
	SELECT p.id, p.order_id, p.order_number, p.amount::text, p.currency, p.status, p.last_error,
	       p.created_at, p.updated_at, p.completed_at,
	       s.id, s.token, s.payer_id, s.transaction_id, s.refund_transaction_id, s.refunded_at,
	       s.refund_type, s.state, s.handshake_state, s.created_at, s.updated_at
	FROM payments p
	JOIN paypal_express_checkouts s ON s.payment_id = p.id`

// PaymentRepository implements payment.Repository using PostgreSQL. The
// payment row and its Express Checkout source are always written together.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new payment and its source.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if p.Source == nil {
		return domainErrors.NewDomainError("missing_source", "payment has no source", domainErrors.ErrInvalidInput)
	}
	s := p.Source

	err := inTx(ctx, r.pool, func(db DBTX) error {
		_, err := db.Exec(ctx,
			`INSERT INTO payments
			 (id, order_id, order_number, amount, currency, status, last_error, created_at, updated_at, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.OrderID, p.OrderNumber, centsToNumericString(p.Amount.ValueCents), p.Amount.Currency,
			string(p.Status), p.LastError, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		_, err = db.Exec(ctx,
			`INSERT INTO paypal_express_checkouts
			 (id, payment_id, token, payer_id, transaction_id, refund_transaction_id, refunded_at,
			  refund_type, state, handshake_state, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			s.ID, p.ID, s.Token, s.PayerID, s.TransactionID, s.RefundTransactionID, s.RefundedAt,
			string(s.RefundType), string(s.State), string(s.Handshake), s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert express checkout: %w", err)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return domainErrors.NewDomainError("duplicate_token", "a payment already exists for this checkout token", domainErrors.ErrInvalidInput)
	}
	return err
}

// GetByID retrieves a payment by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	row := r.db(ctx).QueryRow(ctx, selectPayment+` WHERE p.id = $1`, id)
	return scanPayment(row)
}

// GetByToken retrieves the payment whose source holds the checkout token.
func (r *PaymentRepository) GetByToken(ctx context.Context, token string) (*payment.Payment, error) {
	row := r.db(ctx).QueryRow(ctx, selectPayment+` WHERE s.token = $1`, token)
	return scanPayment(row)
}

// Update persists the payment status and the source's mutable fields. The
// token and payment id of a source never change.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	return inTx(ctx, r.pool, func(db DBTX) error {
		tag, err := db.Exec(ctx,
			`UPDATE payments
			 SET status = $1, last_error = $2, updated_at = $3, completed_at = $4
			 WHERE id = $5`,
			string(p.Status), p.LastError, p.UpdatedAt, p.CompletedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrPaymentNotFound
		}

		if p.Source == nil {
			return nil
		}
		s := p.Source
		_, err = db.Exec(ctx,
			`UPDATE paypal_express_checkouts
			 SET payer_id = $1, transaction_id = $2, refund_transaction_id = $3, refunded_at = $4,
			     refund_type = $5, state = $6, handshake_state = $7, updated_at = $8
			 WHERE payment_id = $9`,
			s.PayerID, s.TransactionID, s.RefundTransactionID, s.RefundedAt,
			string(s.RefundType), string(s.State), string(s.Handshake), s.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update express checkout: %w", err)
		}
		return nil
	})
}

// AddEvent inserts an audit event for a payment.
func (r *PaymentRepository) AddEvent(ctx context.Context, event *payment.PaymentEvent) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if event.EventData == nil {
		data = []byte(`{}`)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_events (id, payment_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.PaymentID, event.EventType, data, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// GetEvents retrieves the audit trail of a payment, oldest first.
func (r *PaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.PaymentEvent, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, payment_id, event_type, event_data, created_at
		 FROM payment_events WHERE payment_id = $1
		 ORDER BY created_at ASC`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query payment events: %w", err)
	}
	defer rows.Close()

	var events []*payment.PaymentEvent
	for rows.Next() {
		e := &payment.PaymentEvent{}
		var data []byte
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.EventData); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanPayment(row scanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	s := &payment.ExpressCheckout{}
	var amount, status, refundType, state, handshake string

	err := row.Scan(
		&p.ID, &p.OrderID, &p.OrderNumber, &amount, &p.Amount.Currency, &status, &p.LastError,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
		&s.ID, &s.Token, &s.PayerID, &s.TransactionID, &s.RefundTransactionID, &s.RefundedAt,
		&refundType, &state, &handshake, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	cents, err := numericStringToCents(amount)
	if err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", p.ID, err)
	}
	p.Amount.ValueCents = cents
	p.Status = payment.PaymentStatus(status)

	s.PaymentID = p.ID
	s.RefundType = payment.RefundType(refundType)
	s.State = payment.SourceState(state)
	s.Handshake = payment.HandshakeState(handshake)
	p.Source = s

	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
