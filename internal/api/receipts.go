package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Veraticus/till/internal/model"
)

// ScanReceipt sends a JPEG to the backend's extractor and returns the
// receipt fields it recognised. Nothing is stored.
func (c *Client) ScanReceipt(ctx context.Context, jpeg []byte) (*model.Receipt, error) {
	if len(jpeg) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	body := map[string]string{
		"image": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
	}
	res := c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/scan", Body: body})
	if !res.OK() {
		return nil, res.Error()
	}
	return decodeOne[model.Receipt](res)
}

// UploadReceiptImage streams a receipt image and returns the identifier the
// backend assigned to it.
func (c *Client) UploadReceiptImage(ctx context.Context, image io.Reader, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	res := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/receipt/upload",
		Raw:         image,
		ContentType: contentType,
	})
	if !res.OK() {
		return "", res.Error()
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := res.Decode(&payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", fmt.Errorf("%w: upload response carried no id", ErrUnexpectedResponse)
	}
	return payload.ID, nil
}

// SaveReceipt creates a receipt.
func (c *Client) SaveReceipt(ctx context.Context, r model.Receipt) (*model.Receipt, error) {
	return c.submitReceipt(ctx, http.MethodPost, r)
}

// UpdateReceipt edits an existing receipt. r.ID must be set.
func (c *Client) UpdateReceipt(ctx context.Context, r model.Receipt) (*model.Receipt, error) {
	if r.ID == 0 {
		return nil, fmt.Errorf("cannot update receipt without an id")
	}
	return c.submitReceipt(ctx, http.MethodPatch, r)
}

func (c *Client) submitReceipt(ctx context.Context, method string, r model.Receipt) (*model.Receipt, error) {
	res := c.Do(ctx, Request{Method: method, Path: "/api/receipt", Body: r})
	if !res.OK() {
		return nil, res.Error()
	}

	if len(res.Body) > 0 {
		if echoed, err := decodeOne[model.Receipt](res); err == nil && echoed.ID != 0 {
			return echoed, nil
		}
	}
	return &r, nil
}

// GetReceipt fetches one receipt with its line items.
func (c *Client) GetReceipt(ctx context.Context, id int) (*model.Receipt, error) {
	res := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/receipt",
		Query:  url.Values{"id": {strconv.Itoa(id)}},
	})
	if !res.OK() {
		return nil, res.Error()
	}
	return decodeOne[model.Receipt](res)
}

// MonthlyReceipts lists receipts of both types dated within month.
func (c *Client) MonthlyReceipts(ctx context.Context, month model.MonthRange) ([]model.Receipt, error) {
	res := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/receipt",
		Query:  url.Values{"type": {"All"}, "from": {month.From}, "to": {month.To}},
	})
	if !res.OK() {
		return nil, res.Error()
	}
	return decodeList[model.Receipt](res)
}
