package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/order"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectOrder = `SELECT id, number, guest_token, currency, ship_total::text, tax_total::text FROM orders`

// OrderRepository reads storefront orders. Orders are written by the
// storefront; this service only resolves them.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// FindCurrent returns the most recently touched open order for a guest.
func (r *OrderRepository) FindCurrent(ctx context.Context, guestToken string) (*order.Order, error) {
	if guestToken == "" {
		return nil, domainErrors.ErrOrderNotFound
	}
	row := r.db(ctx).QueryRow(ctx,
		selectOrder+` WHERE guest_token = $1 AND state <> 'complete'
		 ORDER BY updated_at DESC LIMIT 1`, guestToken,
	)
	return r.load(ctx, row)
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	row := r.db(ctx).QueryRow(ctx, selectOrder+` WHERE id = $1`, id)
	return r.load(ctx, row)
}

func (r *OrderRepository) load(ctx context.Context, row scanner) (*order.Order, error) {
	o := &order.Order{}
	var ship, tax string
	if err := row.Scan(&o.ID, &o.Number, &o.GuestToken, &o.Currency, &ship, &tax); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	var err error
	if o.ShipTotal, err = numericStringToCents(ship); err != nil {
		return nil, fmt.Errorf("order %s ship total: %w", o.Number, err)
	}
	if o.TaxTotal, err = numericStringToCents(tax); err != nil {
		return nil, fmt.Errorf("order %s tax total: %w", o.Number, err)
	}

	if o.LineItems, err = r.lineItems(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Adjustments, err = r.adjustments(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) lineItems(ctx context.Context, orderID uuid.UUID) ([]order.LineItem, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT name, sku, price::text, quantity FROM order_line_items
		 WHERE order_id = $1 ORDER BY position ASC`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []order.LineItem
	for rows.Next() {
		var li order.LineItem
		var price string
		if err := rows.Scan(&li.Name, &li.SKU, &price, &li.Quantity); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		if li.PriceCents, err = numericStringToCents(price); err != nil {
			return nil, fmt.Errorf("line item %s price: %w", li.SKU, err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// adjustments returns only eligible promotions and charges.
func (r *OrderRepository) adjustments(ctx context.Context, orderID uuid.UUID) ([]order.Adjustment, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT label, amount::text FROM order_adjustments
		 WHERE order_id = $1 AND eligible ORDER BY position ASC`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []order.Adjustment
	for rows.Next() {
		var adj order.Adjustment
		var amount string
		if err := rows.Scan(&adj.Label, &amount); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if adj.AmountCents, err = numericStringToCents(amount); err != nil {
			return nil, fmt.Errorf("adjustment %q amount: %w", adj.Label, err)
		}
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}
