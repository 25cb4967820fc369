package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/till/internal/model"
	"github.com/Veraticus/till/internal/testutil/fakeapi"
)

func newFakeBackend(t *testing.T, token string) (*fakeapi.Server, *Client) {
	t.Helper()
	backend := fakeapi.New(t)
	return backend, newTestClient(t, backend.URL, staticToken(token))
}

func TestSignIn(t *testing.T) {
	backend, c := newFakeBackend(t, "")
	ctx := context.Background()

	login, err := c.SignIn(ctx, Credentials{Email: fakeapi.DefaultEmail, Password: fakeapi.DefaultPassword})
	require.NoError(t, err)
	assert.Equal(t, fakeapi.DefaultToken, login.Token)
	require.NotNil(t, login.User)
	assert.Equal(t, "Store Owner", login.User.Name)

	req := backend.LastRequest()
	require.NotNil(t, req)
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.JSONEq(t, `{"email":"owner@example.com","password":"secret123"}`, string(req.Body))
}

func TestSignIn_RejectedHidesBackendDetail(t *testing.T) {
	_, c := newFakeBackend(t, "")

	_, err := c.SignIn(context.Background(), Credentials{Email: "bad@x.com", Password: "wrongpass"})
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, "Invalid Email or Password", err.Error())
}

func TestSignIn_NetworkFailure(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", nil)
	_, err := c.SignIn(context.Background(), Credentials{Email: "a@b.co", Password: "secret123"})

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.False(t, errors.Is(err, ErrAuthentication))
}

func TestCurrentUser(t *testing.T) {
	_, c := newFakeBackend(t, fakeapi.DefaultToken)

	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fakeapi.DefaultEmail, user.Email)
}

func TestAddSale_SendsNumericAmountAndToken(t *testing.T) {
	backend, c := newFakeBackend(t, fakeapi.DefaultToken)

	saved, err := c.AddSale(context.Background(), model.Transaction{
		Description: "Walk-in",
		Amount:      decimal.RequireFromString("150.5"),
		Category:    1,
		Date:        "2024-05-01",
	})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, model.KindSale, saved.Kind)

	req := backend.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/sales", req.Path)
	assert.Equal(t, "Bearer "+fakeapi.DefaultToken, req.Header.Get("Authorization"))
	assert.JSONEq(t, `{"description":"Walk-in","amount":150.5,"category":1,"date":"2024-05-01"}`, string(req.Body))

	assert.Len(t, backend.Transactions(model.KindSale), 1)
	assert.Empty(t, backend.Transactions(model.KindExpense))
}

func TestUpdateExpense(t *testing.T) {
	backend, c := newFakeBackend(t, fakeapi.DefaultToken)
	ctx := context.Background()

	id := backend.AddTransaction(model.KindExpense, model.Transaction{
		Description: "Power", Amount: decimal.NewFromInt(90), Category: 4, Date: "2024-05-02",
	})

	_, err := c.UpdateExpense(ctx, model.Transaction{ID: id, Description: "Power bill", Amount: decimal.NewFromInt(95), Category: 4, Date: "2024-05-02"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, backend.LastRequest().Method)
	assert.Equal(t, "Power bill", backend.Transactions(model.KindExpense)[0].Description)

	_, err = c.UpdateExpense(ctx, model.Transaction{Description: "no id"})
	assert.Error(t, err)

	_, err = c.UpdateSale(ctx, model.Transaction{ID: 999, Description: "missing"})
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, "transaction not found", appErr.Message)
}

func TestMonthlyTransactions(t *testing.T) {
	backend, c := newFakeBackend(t, fakeapi.DefaultToken)
	backend.AddTransaction(model.KindSale, model.Transaction{Description: "in", Amount: decimal.NewFromInt(1), Date: "2024-05-10"})
	backend.AddTransaction(model.KindSale, model.Transaction{Description: "out", Amount: decimal.NewFromInt(1), Date: "2024-06-01"})
	backend.AddTransaction(model.KindExpense, model.Transaction{Description: "exp", Amount: decimal.NewFromInt(1), Date: "2024-05-11"})

	month := model.MonthRange{From: "2024-05-01", To: "2024-05-31"}
	sales, err := c.MonthlySales(context.Background(), month)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "in", sales[0].Description)
	assert.Equal(t, model.KindSale, sales[0].Kind)

	req := backend.LastRequest()
	assert.Equal(t, "2024-05-01", req.Query.Get("date"))
	assert.Equal(t, "2024-05-31", req.Query.Get("second"))

	expenses, err := c.MonthlyExpenses(context.Background(), month)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, model.KindExpense, expenses[0].Kind)
}

func TestProtectedCallWithoutSession(t *testing.T) {
	backend, c := newFakeBackend(t, "")

	_, err := c.MonthlyStatement(context.Background())
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.Unauthorized())

	req := backend.LastRequest()
	require.NotNil(t, req)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestCategories(t *testing.T) {
	_, c := newFakeBackend(t, fakeapi.DefaultToken)
	ctx := context.Background()

	sales, err := c.SaleCategories(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, model.KindSale, sales[0].Kind)

	expenses, err := c.Categories(ctx, model.KindExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "Supplies", expenses[0].Name)
	assert.Equal(t, model.KindExpense, expenses[0].Kind)
}

func TestReceiptLifecycle(t *testing.T) {
	backend, c := newFakeBackend(t, fakeapi.DefaultToken)
	ctx := context.Background()

	scanned, err := c.ScanReceipt(ctx, []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, "R-0001", scanned.ReceiptNumber)

	var scanBody map[string]string
	require.NoError(t, json.Unmarshal(backend.LastRequest().Body, &scanBody))
	assert.Equal(t, "data:image/jpeg;base64,/9j/", scanBody["image"])

	imageID, err := c.UploadReceiptImage(ctx, bytes.NewReader([]byte("jpeg-bytes")), "")
	require.NoError(t, err)
	stored, ok := backend.Upload(imageID)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg-bytes"), stored)
	assert.Equal(t, "image/jpeg", backend.LastRequest().Header.Get("Content-Type"))

	scanned.ImageUUID = imageID
	scanned.SetCategory(3)
	saved, err := c.SaveReceipt(ctx, *scanned)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(backend.LastRequest().Body, &sent))
	assert.Nil(t, sent["sales_category"])
	assert.Equal(t, float64(3), sent["expense_category"])

	saved.Address = "2 Market St"
	_, err = c.UpdateReceipt(ctx, *saved)
	require.NoError(t, err)

	got, err := c.GetReceipt(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 Market St", got.Address)
	assert.Equal(t, imageID, got.ImageUUID)

	list, err := c.MonthlyReceipts(ctx, model.MonthRange{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "All", backend.LastRequest().Query.Get("type"))

	_, err = c.GetReceipt(ctx, 424242)
	assert.Error(t, err)

	_, err = c.UpdateReceipt(ctx, model.Receipt{})
	assert.Error(t, err)

	_, err = c.ScanReceipt(ctx, nil)
	assert.Error(t, err)
}

func TestMonthlyStatement(t *testing.T) {
	_, c := newFakeBackend(t, fakeapi.DefaultToken)

	st, err := c.MonthlyStatement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1500.50", st.Sales.StringFixed(2))
	assert.Equal(t, "1180.25", st.Net().StringFixed(2))
	assert.NotEmpty(t, st.Raw)
}

func TestInjectedFailureMessage(t *testing.T) {
	backend, c := newFakeBackend(t, fakeapi.DefaultToken)
	backend.Fail("/api/expense", http.StatusUnprocessableEntity, "Amount must be positive")

	_, err := c.AddExpense(context.Background(), model.Transaction{Description: "x", Amount: decimal.NewFromInt(-1)})
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Amount must be positive", appErr.Message)
}

func TestDecodeList_Envelopes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "bare", body: `[{"id":1},{"id":2}]`, want: 2},
		{name: "data", body: `{"data":[{"id":1}]}`, want: 1},
		{name: "named", body: `{"total":2,"receipts":[{"id":1},{"id":2}]}`, want: 2},
		{name: "empty array", body: `[]`, want: 0},
		{name: "null", body: `null`, want: 0},
		{name: "object without list", body: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeList[model.Category](Result{Body: json.RawMessage(tt.body)})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnexpectedResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}
