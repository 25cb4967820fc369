package form

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/till/internal/model"
)

// MinPasswordLength is the shortest password the login form accepts.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// FieldErrors maps a field name to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(parts, "; ")
}

// Messages returns the messages in field order.
func (e FieldErrors) Messages() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, e[f])
	}
	return out
}

func (e FieldErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Validator is implemented by every form.
type Validator interface {
	Validate() error
}

// LoginForm is the email/password sign-in form.
type LoginForm struct {
	Email    string
	Password string
}

// Validate returns FieldErrors or nil.
func (f LoginForm) Validate() error {
	errs := FieldErrors{}

	switch {
	case f.Email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(f.Email):
		errs["email"] = "Email is invalid"
	}

	switch {
	case f.Password == "":
		errs["password"] = "Password is required"
	case len(f.Password) < MinPasswordLength:
		errs["password"] = fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}

	return errs.orNil()
}

// TransactionForm is a sale or expense entry without a receipt.
type TransactionForm struct {
	Date        time.Time
	Description string
	Amount      string
	ID          int
	Category    int
}

// Validate returns FieldErrors or nil.
func (f TransactionForm) Validate() error {
	errs := FieldErrors{}

	if strings.TrimSpace(f.Description) == "" {
		errs["description"] = "Description is required"
	}
	if msg := amountError(f.Amount); msg != "" {
		errs["amount"] = msg
	}
	if f.Category <= 0 {
		errs["category"] = "Category is required"
	}
	if f.Date.IsZero() {
		errs["date"] = "Date is required"
	}

	return errs.orNil()
}

// Transaction converts a valid form into the request body.
func (f TransactionForm) Transaction(kind model.Kind, semantics PickerSemantics, target *time.Location) (model.Transaction, error) {
	if err := f.Validate(); err != nil {
		return model.Transaction{}, err
	}
	amount, err := model.ParseAmount(f.Amount)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:          f.ID,
		Description: strings.TrimSpace(f.Description),
		Amount:      amount,
		Category:    f.Category,
		Date:        NormalizeDate(f.Date, semantics, target),
		Kind:        kind,
	}, nil
}

// TransactionFormFrom loads a stored entry into an editable form.
func TransactionFormFrom(tx model.Transaction, loc *time.Location) TransactionForm {
	if loc == nil {
		loc = time.UTC
	}
	f := TransactionForm{
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      tx.Amount.String(),
		Category:    tx.Category,
	}
	if d, err := time.ParseInLocation(model.DateLayout, dateOnly(tx.Date), loc); err == nil {
		f.Date = d
	}
	return f
}

// ItemForm is one editable receipt line.
type ItemForm struct {
	Description string
	UnitPrice   string
	Amount      string
}

// ReceiptForm is the editable receipt.
type ReceiptForm struct {
	Date          time.Time
	ReceiptNumber string
	DeliveredBy   string
	DeliveredTo   string
	Address       string
	ReceiptType   string
	ImageUUID     string
	Total         string
	Items         []ItemForm
	ID            int
	Category      int
}

// Recompute sets Total from the item amounts. Amounts that do not parse
// count as zero until corrected.
func (f *ReceiptForm) Recompute() string {
	items := make([]model.LineItem, 0, len(f.Items))
	for _, it := range f.Items {
		amount, err := decimal.NewFromString(strings.TrimSpace(it.Amount))
		if err != nil {
			continue
		}
		items = append(items, model.LineItem{Amount: amount})
	}
	f.Total = FormatTotal(RecomputeTotal(items))
	return f.Total
}

// Validate returns FieldErrors or nil. Item fields are keyed as
// "items[i].field".
func (f ReceiptForm) Validate() error {
	errs := FieldErrors{}

	required := []struct {
		field, value, msg string
	}{
		{"receipt_number", f.ReceiptNumber, "Receipt number is required"},
		{"delivered_by", f.DeliveredBy, "Delivered by is required"},
		{"delivered_to", f.DeliveredTo, "Delivered to is required"},
		{"address", f.Address, "Address is required"},
		{"receipt_type", f.ReceiptType, "Receipt type is required"},
		{"total", f.Total, "Total is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = r.msg
		}
	}

	if f.Date.IsZero() {
		errs["date"] = "Date is required"
	}
	if _, ok := errs["receipt_type"]; !ok {
		if _, err := model.ParseReceiptType(f.ReceiptType); err != nil {
			errs["receipt_type"] = "Receipt type must be Sales or Expense"
		}
	}

	if len(f.Items) == 0 {
		errs["items"] = "At least one item is required"
	}
	for i, it := range f.Items {
		key := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(it.Description) == "" {
			errs[key+"description"] = "Description is required"
		}
		if strings.TrimSpace(it.UnitPrice) == "" {
			errs[key+"unit_price"] = "Unit price is required"
		} else if _, err := decimal.NewFromString(strings.TrimSpace(it.UnitPrice)); err != nil {
			errs[key+"unit_price"] = "Unit price must be a number"
		}
		if strings.TrimSpace(it.Amount) == "" {
			errs[key+"amount"] = "Amount is required"
		} else if _, err := decimal.NewFromString(strings.TrimSpace(it.Amount)); err != nil {
			errs[key+"amount"] = "Amount must be a number"
		}
	}

	return errs.orNil()
}

// Receipt converts a valid form into the request body. The total is always
// recomputed from the items, and only the category slot matching the
// receipt type is filled.
func (f ReceiptForm) Receipt(semantics PickerSemantics, target *time.Location) (model.Receipt, error) {
	f.Recompute()
	if err := f.Validate(); err != nil {
		return model.Receipt{}, err
	}

	rt, err := model.ParseReceiptType(f.ReceiptType)
	if err != nil {
		return model.Receipt{}, err
	}

	r := model.Receipt{
		ID:            f.ID,
		ReceiptNumber: strings.TrimSpace(f.ReceiptNumber),
		DeliveredBy:   strings.TrimSpace(f.DeliveredBy),
		DeliveredTo:   strings.TrimSpace(f.DeliveredTo),
		Address:       strings.TrimSpace(f.Address),
		ReceiptType:   rt,
		Date:          NormalizeDate(f.Date, semantics, target),
		ImageUUID:     f.ImageUUID,
		Items:         make([]model.LineItem, 0, len(f.Items)),
	}
	if f.Category > 0 {
		r.SetCategory(f.Category)
	}
	for _, it := range f.Items {
		r.Items = append(r.Items, model.LineItem{
			Description: strings.TrimSpace(it.Description),
			UnitPrice:   decimal.RequireFromString(strings.TrimSpace(it.UnitPrice)),
			Amount:      decimal.RequireFromString(strings.TrimSpace(it.Amount)),
		})
	}
	ApplyTotal(&r)
	return r, nil
}

// ReceiptFormFrom loads an existing receipt into an editable form.
func ReceiptFormFrom(r model.Receipt, loc *time.Location) ReceiptForm {
	if loc == nil {
		loc = time.UTC
	}
	f := ReceiptForm{
		ID:            r.ID,
		ReceiptNumber: r.ReceiptNumber,
		DeliveredBy:   r.DeliveredBy,
		DeliveredTo:   r.DeliveredTo,
		Address:       r.Address,
		ReceiptType:   string(r.ReceiptType),
		ImageUUID:     r.ImageUUID,
		Category:      r.CategoryID(),
		Total:         FormatTotal(r.Total),
	}
	if d, err := time.ParseInLocation(model.DateLayout, dateOnly(r.Date), loc); err == nil {
		f.Date = d
	}
	for _, it := range r.Items {
		f.Items = append(f.Items, ItemForm{
			Description: it.Description,
			UnitPrice:   it.UnitPrice.String(),
			Amount:      it.Amount.String(),
		})
	}
	return f
}

// dateOnly trims a timestamp such as "2024-05-01T00:00:00Z" to its date.
func dateOnly(s string) string {
	if len(s) >= len(model.DateLayout) {
		return s[:len(model.DateLayout)]
	}
	return s
}

func amountError(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Amount is required"
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return "Amount must be a number"
	}
	if !amount.IsPositive() {
		return "Amount must be greater than 0"
	}
	return ""
}
