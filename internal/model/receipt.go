package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReceiptType is the receipt classification as the backend spells it.
type ReceiptType string

const (
	// ReceiptSales marks a receipt for money received.
	ReceiptSales ReceiptType = "Sales"
	// ReceiptExpense marks a receipt for money spent.
	ReceiptExpense ReceiptType = "Expense"
)

// ParseReceiptType accepts "sales"/"expense" in any case as well as the kinds.
func ParseReceiptType(s string) (ReceiptType, error) {
	switch s {
	case "Sales", "sales", "sale", "Sale":
		return ReceiptSales, nil
	case "Expense", "expense", "expenses", "Expenses":
		return ReceiptExpense, nil
	default:
		return "", fmt.Errorf("unknown receipt type %q (want Sales or Expense)", s)
	}
}

// Kind maps the receipt type onto a transaction kind.
func (t ReceiptType) Kind() Kind {
	if t == ReceiptExpense {
		return KindExpense
	}
	return KindSale
}

// LineItem is one row of a receipt.
type LineItem struct {
	ID          int             `json:"id,omitempty"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Receipt     int             `json:"receipt,omitempty"`
}

// Receipt is a scanned or manually entered multi-line record.
// Only one of SalesCategory and ExpenseCategory is set, matching ReceiptType.
type Receipt struct {
	ID              int             `json:"id,omitempty"`
	ReceiptNumber   string          `json:"receipt_number"`
	DeliveredBy     string          `json:"delivered_by"`
	DeliveredTo     string          `json:"delivered_to"`
	Address         string          `json:"address"`
	ReceiptType     ReceiptType     `json:"receipt_type"`
	SalesCategory   *int            `json:"sales_category"`
	ExpenseCategory *int            `json:"expense_category"`
	Date            string          `json:"date"`
	ImageUUID       string          `json:"image_uuid,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Items           []LineItem      `json:"items"`
	CreatedAt       string          `json:"createAt,omitempty"`
	UpdatedAt       string          `json:"updateAt,omitempty"`
}

// SetCategory stores id in the category slot matching the receipt type and
// clears the other one.
func (r *Receipt) SetCategory(id int) {
	if r.ReceiptType == ReceiptExpense {
		r.ExpenseCategory = &id
		r.SalesCategory = nil
		return
	}
	r.SalesCategory = &id
	r.ExpenseCategory = nil
}

// CategoryID returns the category for the receipt's type, or 0.
func (r *Receipt) CategoryID() int {
	switch {
	case r.ReceiptType == ReceiptExpense && r.ExpenseCategory != nil:
		return *r.ExpenseCategory
	case r.ReceiptType == ReceiptSales && r.SalesCategory != nil:
		return *r.SalesCategory
	default:
		return 0
	}
}
