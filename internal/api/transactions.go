package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Veraticus/till/internal/model"
)

func transactionPath(kind model.Kind) (string, error) {
	switch kind {
	case model.KindSale:
		return "/api/sales", nil
	case model.KindExpense:
		return "/api/expense", nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", kind)
	}
}

// AddSale records a sale without a receipt.
func (c *Client) AddSale(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	return c.submitTransaction(ctx, http.MethodPost, model.KindSale, tx)
}

// UpdateSale edits an existing sale. tx.ID must be set.
func (c *Client) UpdateSale(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	return c.submitTransaction(ctx, http.MethodPatch, model.KindSale, tx)
}

// AddExpense records an expense without a receipt.
func (c *Client) AddExpense(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	return c.submitTransaction(ctx, http.MethodPost, model.KindExpense, tx)
}

// UpdateExpense edits an existing expense. tx.ID must be set.
func (c *Client) UpdateExpense(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	return c.submitTransaction(ctx, http.MethodPatch, model.KindExpense, tx)
}

// MonthlySales lists the sales recorded within month.
func (c *Client) MonthlySales(ctx context.Context, month model.MonthRange) ([]model.Transaction, error) {
	return c.listTransactions(ctx, model.KindSale, month)
}

// MonthlyExpenses lists the expenses recorded within month.
func (c *Client) MonthlyExpenses(ctx context.Context, month model.MonthRange) ([]model.Transaction, error) {
	return c.listTransactions(ctx, model.KindExpense, month)
}

func (c *Client) submitTransaction(ctx context.Context, method string, kind model.Kind, tx model.Transaction) (*model.Transaction, error) {
	path, err := transactionPath(kind)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPatch && tx.ID == 0 {
		return nil, fmt.Errorf("cannot update %s without an id", kind)
	}

	res := c.Do(ctx, Request{Method: method, Path: path, Body: tx})
	if !res.OK() {
		return nil, res.Error()
	}

	// The backend does not always echo the record back.
	saved := tx
	if len(res.Body) > 0 {
		if echoed, err := decodeOne[model.Transaction](res); err == nil && echoed.ID != 0 {
			saved = *echoed
		}
	}
	saved.Kind = kind
	return &saved, nil
}

func (c *Client) listTransactions(ctx context.Context, kind model.Kind, month model.MonthRange) ([]model.Transaction, error) {
	path, err := transactionPath(kind)
	if err != nil {
		return nil, err
	}

	res := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  url.Values{"date": {month.From}, "second": {month.To}},
	})
	if !res.OK() {
		return nil, res.Error()
	}

	txs, err := decodeList[model.Transaction](res)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].Kind = kind
	}
	return txs, nil
}
