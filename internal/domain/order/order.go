package order

import (
	"context"

	"github.com/google/uuid"
)

// Order is the storefront's view of a cart ready for payment. Prices are in
// minor units of Currency.
type Order struct {
	ID          uuid.UUID
	Number      string
	GuestToken  string
	Currency    string
	ShipTotal   int64
	TaxTotal    int64
	LineItems   []LineItem
	Adjustments []Adjustment
}

type LineItem struct {
	Name       string
	SKU        string
	PriceCents int64
	Quantity   int
}

// Amount is the extended price of the line.
func (li LineItem) Amount() int64 {
	return li.PriceCents * int64(li.Quantity)
}

// Adjustment is an eligible promotion or charge that is neither tax nor
// shipping. AmountCents is signed: discounts are negative.
type Adjustment struct {
	Label       string
	AmountCents int64
}

// ItemTotal sums line items and adjustments.
func (o *Order) ItemTotal() int64 {
	var sum int64
	for _, li := range o.LineItems {
		sum += li.Amount()
	}
	for _, adj := range o.Adjustments {
		sum += adj.AmountCents
	}
	return sum
}

// Total is what the shopper pays.
func (o *Order) Total() int64 {
	return o.ItemTotal() + o.ShipTotal + o.TaxTotal
}

// Repository resolves orders owned by the storefront.
type Repository interface {
	// FindCurrent returns the open order for a guest token or
	// errors.ErrOrderNotFound.
	FindCurrent(ctx context.Context, guestToken string) (*Order, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
}
