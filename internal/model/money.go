// Package model defines the entities exchanged with the bookkeeping backend.
package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend expects amounts as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the date-only format the backend stores transactions under.
const DateLayout = "2006-01-02"

// ParseAmount parses user input such as "150.5" into a decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
