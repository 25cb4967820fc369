// Package session owns the single persisted login of the client: the bearer
// token attached to every backend call, and the identity shown to the user.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload is returned when a scanned QR payload or login response
// cannot be interpreted as a session credential.
var ErrInvalidPayload = errors.New("invalid session payload")

// Source records how a session was created.
type Source string

const (
	// SourceQR marks sessions bootstrapped from a scanned QR code.
	SourceQR Source = "qr"
	// SourceLogin marks sessions created by email/password sign-in.
	SourceLogin Source = "login"
)

// Identity is presentational information about the logged-in user. It is
// never used for authorization decisions.
type Identity struct {
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Hint    string `json:"hint"`
}

// Display returns the best human-readable label for the identity.
func (i *Identity) Display() string {
	switch {
	case i == nil:
		return ""
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	case i.Subject != "":
		return i.Subject
	default:
		return i.Hint
	}
}

// Session is the persisted login.
type Session struct {
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Identity  *Identity  `json:"identity,omitempty"`
	Token     string     `json:"token"`
	Source    Source     `json:"source"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Identity != nil {
		id := *s.Identity
		c.Identity = &id
	}
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// Expired reports whether s carries an expiry that has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Store persists at most one session. Save replaces any previous session as
// a unit; Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// StorageError wraps a failure of the durable session storage.
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
