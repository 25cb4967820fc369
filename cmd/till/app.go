package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/till/internal/api"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/config"
	"github.com/Veraticus/till/internal/form"
	"github.com/Veraticus/till/internal/session"
	"github.com/Veraticus/till/internal/storage"
)

const loginHint = "Run `till qr <code>` or `till login` first."

// app wires configuration, session storage and the backend client for one
// command.
type app struct {
	cfg      *config.Config
	sessions *session.Manager
	client   *api.Client
	loc      *time.Location
	now      func() time.Time
	close    func() error
	guard    form.Guard
}

func (e *env) open(ctx context.Context) (*app, error) {
	cfg, err := config.Load(e.v)
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}

	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return nil, common.NewUserError("Could not open session storage", err)
	}

	sessions := session.NewManager(store, slog.Default())
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  slog.Default(),
	}, sessions)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		sessions: sessions,
		client:   client,
		loc:      cfg.Location(),
		now:      time.Now,
		close:    closeStore,
	}, nil
}

// openSessionStore initializes the configured session backend.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case config.BackendSQLite:
		db, err := storage.Open(ctx, cfg.SessionPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("Opened session database", "path", db.Path())
		return db, db.Close, nil
	default:
		return session.NewFileStore(cfg.SessionPath), func() error { return nil }, nil
	}
}

// Close releases the session store.
func (a *app) Close() error {
	return a.close()
}

// requireSession mirrors the login routing: commands that talk to the
// backend refuse to start without a stored session.
func (a *app) requireSession(ctx context.Context) (*session.Session, error) {
	sess, err := a.sessions.Session(ctx)
	if err != nil {
		return nil, common.NewUserError("Could not read the stored session. "+loginHint, err)
	}
	if sess == nil {
		return nil, common.NewUserError("Not logged in. "+loginHint, common.ErrNotLoggedIn)
	}
	if sess.Expired(a.now()) {
		slog.Warn("Stored session has expired; the server will likely reject it",
			"expired_at", sess.ExpiresAt)
	}
	return sess, nil
}

// failure turns an error from a backend call into what the user sees.
// Validation problems are returned as is; backend detail is logged, not shown.
func failure(action string, err error) error {
	var fieldErrs form.FieldErrors
	if errors.As(err, &fieldErrs) {
		return common.NewUserError(strings.Join(fieldErrs.Messages(), "; "), err)
	}

	var appErr *api.ApplicationError
	var netErr *api.NetworkError
	switch {
	case errors.Is(err, form.ErrSubmitInProgress):
		return common.NewUserError("Another submission is still running", err)
	case errors.As(err, &appErr) && appErr.Unauthorized():
		return common.NewUserError("The server rejected your session. Log in again with `till login` or `till qr`.", err)
	case errors.As(err, &netErr):
		return common.NewUserError(fmt.Sprintf("%s: could not reach the server. Try again.", action), err)
	case errors.As(err, &appErr):
		slog.Debug("Server error", "status", appErr.StatusCode, "message", appErr.Message, "request_id", appErr.RequestID)
		return common.NewUserError(fmt.Sprintf("%s failed. Please try again.", action), err)
	default:
		return common.NewUserError(fmt.Sprintf("%s failed", action), err)
	}
}
