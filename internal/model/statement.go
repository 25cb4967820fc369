package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Statement is the backend's aggregate for the current month. Raw keeps the
// full payload since the backend may add fields.
type Statement struct {
	Sales    decimal.Decimal `json:"sales"`
	Expenses decimal.Decimal `json:"expenses"`
	Raw      json.RawMessage `json:"-"`
}

// Net is sales minus expenses.
func (s Statement) Net() decimal.Decimal {
	return s.Sales.Sub(s.Expenses)
}

// MonthRange is an inclusive date range covering one calendar month.
type MonthRange struct {
	From string
	To   string
}

// CurrentMonth returns the range of the month containing now, in now's location.
func CurrentMonth(now time.Time) MonthRange {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return MonthRange{
		From: first.Format(DateLayout),
		To:   last.Format(DateLayout),
	}
}
