package postgres

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(15,2) and are always selected as ::text so no
// float ever sits between the database and the domain.

func numericStringToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("numeric %q has more than 2 decimal places", s)
	}

	return d.Shift(2).IntPart(), nil
}

func centsToNumericString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
