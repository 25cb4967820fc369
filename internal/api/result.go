package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Outcome classifies how a request settled.
type Outcome int

const (
	// OutcomeSuccess means the backend answered with a 2xx status.
	OutcomeSuccess Outcome = iota
	// OutcomeApplicationError means the backend answered with a non-2xx status.
	OutcomeApplicationError
	// OutcomeTransportError means no response was received.
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeApplicationError:
		return "application_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Errors returned by the resource functions.
var (
	// ErrAuthentication is the only error sign-in reports for rejected
	// credentials. The backend's detail is never surfaced.
	ErrAuthentication = errors.New("Invalid Email or Password") //nolint:staticcheck // shown to users verbatim
	// ErrUnexpectedResponse means a success response did not have the expected shape.
	ErrUnexpectedResponse = errors.New("unexpected response from server")
)

// ApplicationError is a non-success HTTP status from the backend.
type ApplicationError struct {
	Message    string
	RequestID  string
	StatusCode int
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the backend rejected the credential.
func (e *ApplicationError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NetworkError means the request never produced a response.
type NetworkError struct {
	Err       error
	RequestID string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Result is the settled state of one request. Exactly one Outcome applies;
// callers switch on it instead of inspecting the status code directly.
type Result struct {
	Err        error
	Body       json.RawMessage
	Message    string
	RequestID  string
	StatusCode int
	Outcome    Outcome
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Unauthorized reports whether the backend rejected the bearer credential.
func (r Result) Unauthorized() bool {
	return r.Outcome == OutcomeApplicationError &&
		(r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden)
}

// Decode unmarshals the JSON body into v.
func (r Result) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// Error returns the failure as an error value, or nil on success.
func (r Result) Error() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeApplicationError:
		return &ApplicationError{StatusCode: r.StatusCode, Message: r.Message, RequestID: r.RequestID}
	default:
		return &NetworkError{Err: r.Err, RequestID: r.RequestID}
	}
}

// errorMessage pulls a human-readable message out of a JSON error body.
func errorMessage(body json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
