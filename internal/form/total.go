// Package form holds the rules applied to user input before anything is sent
// to the backend: receipt totals, date normalization and field validation.
package form

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/till/internal/model"
)

// RecomputeTotal returns the sum of the item amounts rounded to cents.
// Applying it to an unchanged item list always yields the same value.
func RecomputeTotal(items []model.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}
	return sum.Round(2)
}

// FormatTotal renders an amount with exactly two decimal places.
func FormatTotal(total decimal.Decimal) string {
	return total.StringFixed(2)
}

// ApplyTotal sets r.Total from its items and returns the new total.
func ApplyTotal(r *model.Receipt) decimal.Decimal {
	r.Total = RecomputeTotal(r.Items)
	return r.Total
}

// TotalMatches reports whether r.Total equals the sum of its items.
func TotalMatches(r model.Receipt) bool {
	return r.Total.Round(2).Equal(RecomputeTotal(r.Items))
}
