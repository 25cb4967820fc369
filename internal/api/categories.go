package api

import (
	"context"
	"net/http"

	"github.com/Veraticus/till/internal/model"
)

// SaleCategories lists the categories a sale can be filed under.
func (c *Client) SaleCategories(ctx context.Context) ([]model.Category, error) {
	return c.categories(ctx, "/api/sales/category", model.KindSale)
}

// ExpenseCategories lists the categories an expense can be filed under.
func (c *Client) ExpenseCategories(ctx context.Context) ([]model.Category, error) {
	return c.categories(ctx, "/api/expense/category", model.KindExpense)
}

// Categories dispatches on kind.
func (c *Client) Categories(ctx context.Context, kind model.Kind) ([]model.Category, error) {
	if kind == model.KindExpense {
		return c.ExpenseCategories(ctx)
	}
	return c.SaleCategories(ctx)
}

func (c *Client) categories(ctx context.Context, path string, kind model.Kind) ([]model.Category, error) {
	res := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	if !res.OK() {
		return nil, res.Error()
	}

	cats, err := decodeList[model.Category](res)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		cats[i].Kind = kind
	}
	return cats, nil
}
