package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/config"
	"github.com/Veraticus/till/internal/model"
	"github.com/Veraticus/till/internal/testutil/fakeapi"
)

// harness runs the root command against a fake backend with an isolated
// config file and session store.
type harness struct {
	backend *fakeapi.Server
	dir     string
	store   string
}

func newHarness(t *testing.T, store string) *harness {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("timezone: Asia/Manila\n"), 0600))

	return &harness{
		backend: fakeapi.New(t),
		dir:     dir,
		store:   store,
	}
}

func (h *harness) sessionPath() string {
	if h.store == config.BackendSQLite {
		return filepath.Join(h.dir, "till.db")
	}
	return filepath.Join(h.dir, "session.json")
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	e := &env{v: viper.New(), interrupts: cli.NewInterruptHandler(io.Discard)}
	root := newRootCmd(e)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{
		"--config", filepath.Join(h.dir, "config.yaml"),
		"--base-url", h.backend.URL,
		"--session-backend", h.store,
		"--session-path", h.sessionPath(),
	}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.run(t, "", "qr", fakeapi.DefaultToken)
	require.NoError(t, err)
}

func TestQR_ThenWhoami(t *testing.T) {
	for _, store := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(store, func(t *testing.T) {
			h := newHarness(t, store)

			out, err := h.run(t, "", "qr", fakeapi.DefaultToken)
			require.NoError(t, err)
			assert.Contains(t, out, "Logged in as tok_...")
			assert.Empty(t, h.backend.Requests(), "deriving a session must not call the backend")

			out, err = h.run(t, "", "whoami")
			require.NoError(t, err)
			assert.Contains(t, out, "tok_...")
			assert.Contains(t, out, "via:     qr")
		})
	}
}

func TestQR_ReadsStdin(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	_, err := h.run(t, "  "+fakeapi.DefaultToken+"\n", "qr", "-")
	require.NoError(t, err)

	_, err = os.Stat(h.sessionPath())
	assert.NoError(t, err)
}

func TestQR_InvalidPayload(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	_, err := h.run(t, "", "qr", "not a token")
	require.Error(t, err)
	assert.Equal(t, "That is not a valid login code. Scan it again.", common.UserMessage(err))

	_, err = h.run(t, "", "whoami")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestQR_VerifyEnrichesIdentity(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	out, err := h.run(t, "", "qr", "--verify", fakeapi.DefaultToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Store Owner")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Store Owner")
	assert.Contains(t, out, "via:     qr")
}

func TestQR_VerifyRejectedRemovesSession(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	_, err := h.run(t, "", "qr", "--verify", "tok_revoked")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "did not accept")

	_, err = os.Stat(h.sessionPath())
	assert.True(t, os.IsNotExist(err))
}

func TestLogin(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	out, err := h.run(t, fakeapi.DefaultPassword+"\n", "login", "--email", fakeapi.DefaultEmail)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Store Owner")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "/api/user/login", last.Path)
	assert.Empty(t, last.Header.Get("Authorization"))

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "via:     login")
}

func TestLogin_PromptsForEmail(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	out, err := h.run(t, fakeapi.DefaultEmail+"\n"+fakeapi.DefaultPassword+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email")
	assert.Contains(t, out, "Password")
	assert.Contains(t, out, "Logged in as Store Owner")
}

func TestLogin_ValidationBlocksRequest(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	_, err := h.run(t, "short\n", "login", "--email", "bad@x.com")
	require.Error(t, err)
	assert.Equal(t, "Password must be at least 6 characters", common.UserMessage(err))
	assert.Empty(t, h.backend.Requests())
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	_, err := h.run(t, "wrong-password\n", "login", "--email", fakeapi.DefaultEmail)
	require.Error(t, err)
	assert.Equal(t, "Invalid Email or Password", common.UserMessage(err))

	_, err = os.Stat(h.sessionPath())
	assert.True(t, os.IsNotExist(err))
}

func TestLogout_Idempotent(t *testing.T) {
	h := newHarness(t, config.BackendSQLite)
	h.login(t)

	out, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run(t, "", "logout")
	require.NoError(t, err)

	_, err = h.run(t, "", "statement")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "Not logged in")
}

func TestProtectedCommands_RequireSession(t *testing.T) {
	commands := [][]string{
		{"sales", "list"},
		{"expense", "add", "--description", "Rice", "--amount", "10", "--category", "3"},
		{"categories"},
		{"receipt", "get", "1"},
		{"statement"},
		{"whoami"},
	}

	for _, args := range commands {
		t.Run(strings.Join(args[:1], " "), func(t *testing.T) {
			h := newHarness(t, config.BackendFile)

			_, err := h.run(t, "", args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrNotLoggedIn)
			assert.Contains(t, common.UserMessage(err), "till qr")
			assert.Empty(t, h.backend.Requests())
		})
	}
}

func TestSalesAdd(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	out, err := h.run(t, "", "sales", "add",
		"--description", "Coffee beans",
		"--amount", "150.5",
		"--category", "1",
		"--date", "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Sale recorded: Coffee beans 150.50 on 2024-05-01")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/api/sales", last.Path)
	assert.Equal(t, "Bearer "+fakeapi.DefaultToken, last.Header.Get("Authorization"))
	assert.JSONEq(t, `{"description":"Coffee beans","amount":150.5,"category":1,"date":"2024-05-01"}`, string(last.Body))
}

func TestExpenseAdd_ResolvesCategoryName(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	_, err := h.run(t, "", "expense", "add",
		"--description", "Power bill",
		"--amount", "80",
		"--category", "utilities",
		"--date", "2024-05-03")
	require.NoError(t, err)

	stored := h.backend.Transactions(model.KindExpense)
	require.Len(t, stored, 1)
	assert.Equal(t, 4, stored[0].Category)
	assert.Equal(t, "2024-05-03", stored[0].Date)
}

func TestSalesAdd_ValidationBlocksRequest(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	_, err := h.run(t, "", "sales", "add", "--description", "Coffee", "--amount", "-5", "--category", "1")
	require.Error(t, err)
	assert.Equal(t, "Amount must be greater than 0", common.UserMessage(err))
	assert.Empty(t, h.backend.Transactions(model.KindSale))
}

func TestSalesAdd_ServerFailure(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	h.backend.Fail("/api/sales", http.StatusInternalServerError, "database down")

	_, err := h.run(t, "", "sales", "add", "--description", "Coffee", "--amount", "5", "--category", "1")
	require.Error(t, err)
	assert.Equal(t, "Saving sale failed. Please try again.", common.UserMessage(err))
}

func TestSalesUpdate(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	id := h.backend.AddTransaction(model.KindSale, model.Transaction{
		Description: "Coffee", Amount: decimal.NewFromInt(5), Category: 1, Date: "2024-05-01",
	})

	_, err := h.run(t, "", "sales", "update", "101",
		"--month", "2024-05",
		"--description", "Coffee (large)", "--amount", "7.25", "--category", "1", "--date", "2024-05-02")
	require.NoError(t, err)
	require.Equal(t, 101, id)

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, http.MethodPatch, last.Method)

	stored := h.backend.Transactions(model.KindSale)
	require.Len(t, stored, 1)
	assert.Equal(t, "Coffee (large)", stored[0].Description)
	assert.Equal(t, "7.25", stored[0].Amount.StringFixed(2))
	assert.Equal(t, "2024-05-02", stored[0].Date)
}

func TestSalesUpdate_KeepsUnchangedFields(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	id := h.backend.AddTransaction(model.KindSale, model.Transaction{
		Description: "Coffee", Amount: decimal.NewFromInt(5), Category: 2, Date: "2024-05-01",
	})
	require.Equal(t, 101, id)

	_, err := h.run(t, "", "sales", "update", "101", "--month", "2024-05", "--amount", "9")
	require.NoError(t, err)

	stored := h.backend.Transactions(model.KindSale)
	require.Len(t, stored, 1)
	assert.Equal(t, 101, stored[0].ID)
	assert.Equal(t, "Coffee", stored[0].Description)
	assert.Equal(t, "9.00", stored[0].Amount.StringFixed(2))
	assert.Equal(t, 2, stored[0].Category)
	assert.Equal(t, "2024-05-01", stored[0].Date)
}

func TestExpenseUpdate_NotFoundInMonth(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	h.backend.AddTransaction(model.KindExpense, model.Transaction{
		Description: "Rice", Amount: decimal.NewFromInt(30), Category: 3, Date: "2024-05-01",
	})

	_, err := h.run(t, "", "expense", "update", "101", "--month", "2024-06", "--amount", "9")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "Expense #101 not found")

	for _, r := range h.backend.Requests() {
		assert.NotEqual(t, http.MethodPatch, r.Method)
	}
	stored := h.backend.Transactions(model.KindExpense)
	require.Len(t, stored, 1)
	assert.Equal(t, "30.00", stored[0].Amount.StringFixed(2))
}

func TestSalesList(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	h.backend.AddTransaction(model.KindSale, model.Transaction{Description: "Coffee", Amount: decimal.RequireFromString("5.50"), Category: 1, Date: "2024-05-01"})
	h.backend.AddTransaction(model.KindSale, model.Transaction{Description: "Tea", Amount: decimal.NewFromInt(3), Category: 1, Date: "2024-05-20"})
	h.backend.AddTransaction(model.KindSale, model.Transaction{Description: "Old", Amount: decimal.NewFromInt(9), Category: 1, Date: "2024-04-30"})

	out, err := h.run(t, "", "sales", "list", "--month", "2024-05")
	require.NoError(t, err)
	assert.Contains(t, out, "Coffee")
	assert.Contains(t, out, "Tea")
	assert.NotContains(t, out, "Old")
	assert.Contains(t, out, "8.50")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "2024-05-01", last.Query.Get("date"))
	assert.Equal(t, "2024-05-31", last.Query.Get("second"))

	_, err = h.run(t, "", "sales", "list", "--month", "May")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "Invalid month")
}

func TestCategories(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	out, err := h.run(t, "", "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "Sale categories")
	assert.Contains(t, out, "Retail")
	assert.Contains(t, out, "Expense categories")
	assert.Contains(t, out, "Utilities")

	out, err = h.run(t, "", "categories", "expense")
	require.NoError(t, err)
	assert.NotContains(t, out, "Retail")
	assert.Contains(t, out, "Supplies")
}

func TestStatement(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	out, err := h.run(t, "", "statement")
	require.NoError(t, err)
	assert.Contains(t, out, "1500.50")
	assert.Contains(t, out, "320.25")
	assert.Contains(t, out, "1180.25")
}

func TestStatement_RejectedSession(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	_, err := h.run(t, "", "qr", "tok_expired")
	require.NoError(t, err)

	_, err = h.run(t, "", "statement")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "rejected your session")

	_, err = os.Stat(h.sessionPath())
	assert.NoError(t, err, "a rejected request does not clear the stored session")
}

func TestReceiptSave_RecomputesTotal(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	out, err := h.run(t, "", "receipt", "save",
		"--number", "R-42",
		"--delivered-by", "Supplier Co",
		"--delivered-to", "Store Owner",
		"--address", "1 Market St",
		"--type", "Expense",
		"--category", "3",
		"--date", "2024-05-01",
		"--item", "Rice|10|30",
		"--item", "Oil|2.5|5.125")
	require.NoError(t, err)
	assert.Contains(t, out, "Receipt R-42 saved")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &body))
	assert.Equal(t, 35.13, body["total"])
	assert.Equal(t, float64(3), body["expense_category"])
	assert.Nil(t, body["sales_category"])
	assert.Equal(t, "2024-05-01", body["date"])
}

func TestReceiptSave_Validation(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	_, err := h.run(t, "", "receipt", "save", "--number", "R-42", "--type", "Expense")
	require.Error(t, err)
	msg := common.UserMessage(err)
	assert.Contains(t, msg, "At least one item is required")
	assert.Contains(t, msg, "Address is required")

	for _, r := range h.backend.Requests() {
		assert.NotEqual(t, "/api/receipt", r.Path)
	}
}

func TestReceiptUpdate_KeepsUnchangedFields(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	category := 3
	id := h.backend.AddReceipt(model.Receipt{
		ReceiptNumber:   "R-7",
		DeliveredBy:     "Supplier Co",
		DeliveredTo:     "Store Owner",
		Address:         "1 Market St",
		ReceiptType:     model.ReceiptExpense,
		ExpenseCategory: &category,
		Date:            "2024-05-01",
		Total:           decimal.NewFromInt(30),
		Items:           []model.LineItem{{Description: "Rice", UnitPrice: decimal.NewFromInt(10), Amount: decimal.NewFromInt(30)}},
	})

	_, err := h.run(t, "", "receipt", "update", "101", "--address", "2 Harbor Rd", "--item", "Rice|10|40")
	require.NoError(t, err)
	require.Equal(t, 101, id)

	stored, ok := h.backend.Receipt(id)
	require.True(t, ok)
	assert.Equal(t, "2 Harbor Rd", stored.Address)
	assert.Equal(t, "R-7", stored.ReceiptNumber)
	assert.Equal(t, "2024-05-01", stored.Date)
	assert.Equal(t, 3, stored.CategoryID())
	assert.Equal(t, "40.00", stored.Total.StringFixed(2))
}

func seedSalesReceipt(t *testing.T, h *harness) int {
	t.Helper()
	category := 1
	return h.backend.AddReceipt(model.Receipt{
		ReceiptNumber: "R-8",
		DeliveredBy:   "Store Owner",
		DeliveredTo:   "Customer",
		Address:       "1 Market St",
		ReceiptType:   model.ReceiptSales,
		SalesCategory: &category,
		Date:          "2024-05-01",
		Total:         decimal.NewFromInt(20),
		Items:         []model.LineItem{{Description: "Bread", UnitPrice: decimal.NewFromInt(4), Amount: decimal.NewFromInt(20)}},
	})
}

func TestReceiptUpdate_TypeChangeNeedsCategory(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	id := seedSalesReceipt(t, h)

	_, err := h.run(t, "", "receipt", "update", "101", "--type", "Expense")
	require.Error(t, err)
	assert.Equal(t, "Category is required when changing the receipt type", common.UserMessage(err))

	stored, ok := h.backend.Receipt(id)
	require.True(t, ok)
	assert.Equal(t, model.ReceiptSales, stored.ReceiptType)
	require.NotNil(t, stored.SalesCategory)
	assert.Equal(t, 1, *stored.SalesCategory)
	assert.Nil(t, stored.ExpenseCategory)
}

func TestReceiptUpdate_TypeChangeWithCategory(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	id := seedSalesReceipt(t, h)

	_, err := h.run(t, "", "receipt", "update", "101", "--type", "expense", "--category", "Supplies")
	require.NoError(t, err)

	stored, ok := h.backend.Receipt(id)
	require.True(t, ok)
	assert.Equal(t, model.ReceiptExpense, stored.ReceiptType)
	assert.Nil(t, stored.SalesCategory)
	require.NotNil(t, stored.ExpenseCategory)
	assert.Equal(t, 3, *stored.ExpenseCategory)
}

func TestReceiptUpdate_SameTypeKeepsCategory(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	id := seedSalesReceipt(t, h)

	_, err := h.run(t, "", "receipt", "update", "101", "--type", "sales")
	require.NoError(t, err)

	stored, ok := h.backend.Receipt(id)
	require.True(t, ok)
	assert.Equal(t, 1, stored.CategoryID())
	assert.Nil(t, stored.ExpenseCategory)
}

func TestReceiptGetAndList(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)
	h.backend.AddReceipt(model.Receipt{
		ReceiptNumber: "R-9",
		ReceiptType:   model.ReceiptSales,
		Date:          "2024-05-04",
		Total:         decimal.NewFromInt(12),
		Items:         []model.LineItem{{Description: "Bread", UnitPrice: decimal.NewFromInt(4), Amount: decimal.NewFromInt(12)}},
	})

	out, err := h.run(t, "", "receipt", "get", "101")
	require.NoError(t, err)
	assert.Contains(t, out, "Receipt R-9")
	assert.Contains(t, out, "Bread")
	assert.Contains(t, out, "12.00")

	out, err = h.run(t, "", "receipt", "list", "--month", "2024-05")
	require.NoError(t, err)
	assert.Contains(t, out, "R-9")

	_, err = h.run(t, "", "receipt", "get", "abc")
	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "Invalid id")
}

func TestReceiptUpload(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	image := filepath.Join(h.dir, "receipt.jpg")
	require.NoError(t, os.WriteFile(image, []byte("\xff\xd8\xff fake jpeg"), 0600))

	out, err := h.run(t, "", "receipt", "upload", image)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded image img-")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "image/jpeg", last.Header.Get("Content-Type"))
	assert.Equal(t, []byte("\xff\xd8\xff fake jpeg"), last.Body)
}

func TestReceiptScan(t *testing.T) {
	h := newHarness(t, config.BackendFile)
	h.login(t)

	image := filepath.Join(h.dir, "receipt.jpg")
	require.NoError(t, os.WriteFile(image, []byte("\xff\xd8\xff fake jpeg"), 0600))

	out, err := h.run(t, "", "receipt", "scan", image)
	require.NoError(t, err)
	assert.Contains(t, out, "R-0001")
	assert.Contains(t, out, "Rice")

	out, err = h.run(t, "", "receipt", "scan", image, "--save", "--category", "Supplies")
	require.NoError(t, err)
	assert.Contains(t, out, "Receipt R-0001 saved")

	last := h.backend.LastRequest()
	require.NotNil(t, last)
	var saved model.Receipt
	require.NoError(t, json.Unmarshal(last.Body, &saved))
	assert.True(t, strings.HasPrefix(saved.ImageUUID, "img-"), saved.ImageUUID)
	assert.Equal(t, 3, saved.CategoryID())
	assert.Equal(t, "2024-05-01", saved.Date)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err         error
		name        string
		want        int
		interrupted bool
	}{
		{name: "success", want: exitOK},
		{name: "failure", err: common.ErrNotLoggedIn, want: exitFailure},
		{name: "interrupted", err: context.Canceled, interrupted: true, want: exitInterrupted},
		{name: "interrupted after success", interrupted: true, want: exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err, tt.interrupted))
		})
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t, config.BackendFile)

	out, err := h.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "till dev\n", out)
}
