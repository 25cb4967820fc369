package session

import (
	"context"
	"log/slog"
	"time"
)

// Manager is the single authority for whether the user is logged in and
// which credential accompanies outbound calls.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a manager over store. A nil logger uses the default.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// DeriveFromQR interprets a scanned QR code as a session bootstrap value,
// persists it, and returns the stored session.
func (m *Manager) DeriveFromQR(ctx context.Context, payload string) (*Session, error) {
	s, err := ParsePayload(payload)
	if err != nil {
		m.logger.Warn("Rejected QR payload", "error", err)
		return nil, err
	}
	s.Source = SourceQR
	return m.persist(ctx, s)
}

// SaveLogin persists the token returned by email/password sign-in. Identity
// fields supplied by the caller take precedence over claims in the token.
func (m *Manager) SaveLogin(ctx context.Context, token string, identity *Identity) (*Session, error) {
	s, err := ParsePayload(token)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		mergeIdentity(s.Identity, identity)
	}
	s.Source = SourceLogin
	return m.persist(ctx, s)
}

// Enrich merges identity fields learned from the backend into the stored
// session, keeping its token and source.
func (m *Manager) Enrich(ctx context.Context, identity *Identity) (*Session, error) {
	s, err := m.Session(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil || identity == nil {
		return s, nil
	}
	if s.Identity == nil {
		s.Identity = &Identity{Hint: tokenHint(s.Token)}
	}
	mergeIdentity(s.Identity, identity)

	if err := m.store.Save(ctx, s); err != nil {
		return nil, &StorageError{Op: "save", Err: err}
	}
	return s.Clone(), nil
}

func (m *Manager) persist(ctx context.Context, s *Session) (*Session, error) {
	s.CreatedAt = m.now().UTC()

	if err := m.store.Save(ctx, s); err != nil {
		return nil, &StorageError{Op: "save", Err: err}
	}

	m.logger.Info("Session stored",
		"source", s.Source,
		"user", s.Identity.Display())
	return s.Clone(), nil
}

// Session returns the persisted session, or nil when none exists. Absence is
// not an error.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	s, err := m.store.Load(ctx)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	if s == nil || s.Token == "" {
		return nil, nil
	}
	return s, nil
}

// User returns the identity captured when the session was created, or nil.
func (m *Manager) User(ctx context.Context) (*Identity, error) {
	s, err := m.Session(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Identity, nil
}

// Remove clears the persisted session. Clearing an empty store succeeds.
func (m *Manager) Remove(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	m.logger.Info("Session removed")
	return nil
}

// Token returns the current bearer token, or "" when there is none. Storage
// failures are logged and treated as no token so the caller still issues the
// request and lets the backend reject it.
func (m *Manager) Token(ctx context.Context) string {
	s, err := m.Session(ctx)
	if err != nil {
		m.logger.Warn("Could not read session, sending request without credentials", "error", err)
		return ""
	}
	if s == nil {
		return ""
	}
	return s.Token
}
