// Package storage provides the local SQLite persistence layer of the client.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/till/internal/session"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidSession = errors.New("invalid session")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSession checks the fields the session table requires.
func validateSession(s *session.Session) error {
	if s == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if s.Token == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidSession)
	}
	if s.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidSession)
	}
	return nil
}
