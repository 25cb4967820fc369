// Package api talks to the bookkeeping backend. Every call goes through
// Client.Do, which attaches the session's bearer token and classifies the
// outcome into a Result.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries the client-generated correlation ID.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for outgoing calls. An empty string
// means no session; the call is still issued without credentials.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Config holds the configuration for the backend client.
type Config struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	BaseURL    string
	Timeout    time.Duration
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
	}
	return nil
}

// Client issues authenticated JSON requests against the backend.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a client. tokens may be nil, in which case every call is
// anonymous.
func NewClient(cfg Config, tokens TokenSource) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.With("component", "api"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Request describes one call. Body is JSON-encoded; Raw is streamed as is
// and takes precedence over Body.
type Request struct {
	Body        any
	Raw         io.Reader
	Query       url.Values
	Method      string
	Path        string
	ContentType string
	// Anonymous skips the session token entirely (sign-in).
	Anonymous bool
}

// Do issues req and classifies the outcome. It never returns an error and
// never panics on transport failure: the failure is logged and reported as
// OutcomeTransportError. There is no retry.
func (c *Client) Do(ctx context.Context, req Request) Result {
	res := Result{RequestID: uuid.NewString()}

	httpReq, err := c.newRequest(ctx, req, res.RequestID)
	if err != nil {
		return c.transportFailure(res, req, err)
	}

	c.logger.Debug("Sending request",
		"method", httpReq.Method,
		"path", req.Path,
		"request_id", res.RequestID,
		"authenticated", httpReq.Header.Get("Authorization") != "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportFailure(res, req, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(res, req, fmt.Errorf("failed to read response: %w", err))
	}

	res.StatusCode = resp.StatusCode
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && json.Valid(trimmed) {
		res.Body = json.RawMessage(trimmed)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Outcome = OutcomeSuccess
		return res
	}

	res.Outcome = OutcomeApplicationError
	if res.Body != nil {
		res.Message = errorMessage(res.Body)
	}
	if res.Message == "" {
		res.Message = http.StatusText(resp.StatusCode)
	}

	c.logger.Debug("Server rejected request",
		"method", httpReq.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", res.RequestID,
		"message", res.Message)
	return res
}

func (c *Client) newRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.Raw != nil:
		body = req.Raw
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if !req.Anonymous && c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
		}
	}
	return httpReq, nil
}

func (c *Client) transportFailure(res Result, req Request, err error) Result {
	res.Outcome = OutcomeTransportError
	res.Err = err

	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	c.logger.Log(context.Background(), level, "Request failed",
		"method", req.Method,
		"path", req.Path,
		"request_id", res.RequestID,
		"error", err)
	return res
}
