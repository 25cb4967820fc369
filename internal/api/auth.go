package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Veraticus/till/internal/session"
)

// Credentials are the email/password pair posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is a successful sign-in.
type Login struct {
	User  *session.Identity
	Token string
}

// SignIn exchanges credentials for a session token. Any rejection by the
// backend is reported as ErrAuthentication.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Login, error) {
	res := c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/api/user/login",
		Body:      creds,
		Anonymous: true,
	})

	switch res.Outcome {
	case OutcomeSuccess:
		var payload struct {
			User    *session.Identity `json:"user"`
			Session string            `json:"session"`
		}
		if err := res.Decode(&payload); err != nil {
			return nil, err
		}
		if payload.Session == "" {
			return nil, fmt.Errorf("%w: login response carried no session", ErrUnexpectedResponse)
		}
		return &Login{Token: payload.Session, User: payload.User}, nil
	case OutcomeApplicationError:
		return nil, ErrAuthentication
	default:
		return nil, res.Error()
	}
}

// CurrentUser asks the backend who the stored token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*session.Identity, error) {
	res := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/user/session"})
	if !res.OK() {
		return nil, res.Error()
	}

	var payload struct {
		User *session.Identity `json:"user"`
		session.Identity
	}
	if err := res.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.User != nil {
		return payload.User, nil
	}
	if payload.Subject == "" && payload.Name == "" && payload.Email == "" {
		return nil, fmt.Errorf("%w: no user in session response", ErrUnexpectedResponse)
	}
	id := payload.Identity
	return &id, nil
}
