package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// listKeys are the envelope fields the backend has used to wrap collections.
var listKeys = []string{"data", "items", "results", "sales", "expenses", "expense", "receipts", "categories"}

// decodeList accepts either a bare JSON array or an object wrapping one
// under a known key.
func decodeList[T any](res Result) ([]T, error) {
	if len(res.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}

	raw := res.Body
	if bytes.HasPrefix(raw, []byte("{")) {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		raw = nil
		for _, key := range listKeys {
			if v, ok := envelope[key]; ok && bytes.HasPrefix(bytes.TrimSpace(v), []byte("[")) {
				raw = v
				break
			}
		}
		if raw == nil {
			return nil, fmt.Errorf("%w: no list in response", ErrUnexpectedResponse)
		}
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// decodeOne accepts an object either bare or wrapped under "data".
func decodeOne[T any](res Result) (*T, error) {
	if len(res.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	raw := res.Body
	if err := json.Unmarshal(raw, &envelope); err == nil && bytes.HasPrefix(bytes.TrimSpace(envelope.Data), []byte("{")) {
		raw = envelope.Data
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &out, nil
}
