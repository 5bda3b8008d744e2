package payment

import (
	"fmt"
	"strings"

	"github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// MinorUnits is the number of decimal places every supported currency uses.
const MinorUnits = 2

var maxAmount = decimal.New(1, 13) // 10^13 in major units stays well inside int64 cents

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	return a.Format() + " " + a.Currency
}

// Format renders the value the way the gateway expects it: "10.00".
func (a Amount) Format() string {
	return decimal.New(a.ValueCents, -MinorUnits).StringFixed(MinorUnits)
}

// Decimal returns the value in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.ValueCents, -MinorUnits)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	return validateAmount(a)
}

// IsZero reports whether the amount carries no value.
func (a Amount) IsZero() bool {
	return a.ValueCents == 0
}

// Equal compares value and currency.
func (a Amount) Equal(other Amount) bool {
	return a.ValueCents == other.ValueCents && strings.EqualFold(a.Currency, other.Currency)
}

// AmountFromDecimal converts a major-unit decimal into an Amount. It fails
// when the value carries more precision than the currency allows.
func AmountFromDecimal(d decimal.Decimal, currency string) (Amount, error) {
	if !d.Equal(d.Round(MinorUnits)) {
		return Amount{}, fmt.Errorf("%w: %s has more than %d decimal places", errors.ErrInvalidAmount, d.String(), MinorUnits)
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return Amount{}, fmt.Errorf("%w: %s is out of range", errors.ErrInvalidAmount, d.String())
	}
	return Amount{
		ValueCents: d.Shift(MinorUnits).IntPart(),
		Currency:   currency,
	}, nil
}

// ParseAmount parses free-text operator input such as "10" or "10.50" into a
// positive Amount.
func ParseAmount(text, currency string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}, fmt.Errorf("%w: empty", errors.ErrInvalidAmount)
	}
	if strings.ContainsAny(text, "eE") {
		return Amount{}, fmt.Errorf("%w: %q", errors.ErrInvalidAmount, text)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", errors.ErrInvalidAmount, text)
	}
	if !d.IsPositive() {
		return Amount{}, fmt.Errorf("%w: %q must be greater than 0", errors.ErrInvalidAmount, text)
	}
	return AmountFromDecimal(d, currency)
}

func validateAmount(amount Amount) error {
	if amount.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if amount.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	if len(amount.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}
