package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/till/internal/session"
)

var _ session.Store = (*SQLiteStorage)(nil)

// Load returns the stored session, or nil when none exists.
func (s *SQLiteStorage) Load(ctx context.Context) (*session.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		token, source, createdAt string
		identity, expiresAt      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, source, identity, created_at, expires_at
		FROM session WHERE id = 1
	`).Scan(&token, &source, &identity, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	sess := &session.Session{
		Token:  token,
		Source: session.Source(source),
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse session created_at: %w", err)
	}
	if expiresAt.Valid {
		exp, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session expires_at: %w", err)
		}
		sess.ExpiresAt = &exp
	}
	if identity.Valid && identity.String != "" {
		var id session.Identity
		if err := json.Unmarshal([]byte(identity.String), &id); err != nil {
			return nil, fmt.Errorf("failed to decode session identity: %w", err)
		}
		sess.Identity = &id
	}
	return sess, nil
}

// Save replaces any stored session with sess in a single transaction.
func (s *SQLiteStorage) Save(ctx context.Context, sess *session.Session) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(sess); err != nil {
		return err
	}

	var identity sql.NullString
	if sess.Identity != nil {
		data, err := json.Marshal(sess.Identity)
		if err != nil {
			return fmt.Errorf("failed to encode session identity: %w", err)
		}
		identity = sql.NullString{String: string(data), Valid: true}
	}
	var expiresAt sql.NullString
	if sess.ExpiresAt != nil {
		expiresAt = sql.NullString{String: sess.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session (id, token, source, identity, created_at, expires_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			source = excluded.source,
			identity = excluded.identity,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, sess.Token, string(sess.Source), identity,
		sess.CreatedAt.UTC().Format(time.RFC3339Nano), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Clear deletes the stored session. Clearing an empty table is not an error.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
