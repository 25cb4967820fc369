package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind distinguishes sales from expenses.
type Kind string

const (
	// KindSale is money coming in.
	KindSale Kind = "sale"
	// KindExpense is money going out.
	KindExpense Kind = "expense"
)

// ParseKind accepts the singular and plural spellings used on the command line.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sale", "sales":
		return KindSale, nil
	case "expense", "expenses":
		return KindExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q (want sale or expense)", s)
	}
}

// Transaction is a single sale or expense entry that has no receipt attached.
// The backend owns its identity and persistence.
type Transaction struct {
	ID          int             `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    int             `json:"category"`
	Date        string          `json:"date"`
	Kind        Kind            `json:"-"`
}
