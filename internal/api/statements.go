package api

import (
	"context"
	"net/http"

	"github.com/Veraticus/till/internal/model"
)

// MonthlyStatement fetches the backend's totals for the current month.
func (c *Client) MonthlyStatement(ctx context.Context) (*model.Statement, error) {
	res := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/total/month"})
	if !res.OK() {
		return nil, res.Error()
	}

	st, err := decodeOne[model.Statement](res)
	if err != nil {
		return nil, err
	}
	st.Raw = res.Body
	return st, nil
}
