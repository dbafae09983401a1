package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository"
)

// SessionKeys names the two rows the session is stored under.
type SessionKeys struct {
	Token    string
	Username string
}

// DefaultSessionKeys matches the keys the browser client used.
var DefaultSessionKeys = SessionKeys{Token: "token", Username: "username"}

// SessionStore persists model.Session as two key/value rows.
type SessionStore struct {
	db   *DB
	keys SessionKeys
}

// compile-time check that *SessionStore implements repository.SessionStore
var _ repository.SessionStore = (*SessionStore)(nil)

// Sessions returns a store bound to keys. Empty key names fall back to
// DefaultSessionKeys.
func (db *DB) Sessions(keys SessionKeys) *SessionStore {
	if keys.Token == "" {
		keys.Token = DefaultSessionKeys.Token
	}
	if keys.Username == "" {
		keys.Username = DefaultSessionKeys.Username
	}
	return &SessionStore{db: db, keys: keys}
}

// Load returns the stored session, or the zero Session when either half is
// missing. A half-written session is never handed out.
func (s *SessionStore) Load(ctx context.Context) (model.Session, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT key, value FROM session WHERE key IN (?, ?)`,
		s.keys.Token, s.keys.Username,
	)
	if err != nil {
		return model.Session{}, fmt.Errorf("sqlite: loading session: %w", err)
	}
	defer rows.Close()

	var session model.Session
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.Session{}, fmt.Errorf("sqlite: scanning session row: %w", err)
		}
		switch key {
		case s.keys.Token:
			session.Token = value
		case s.keys.Username:
			session.Username = value
		}
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, fmt.Errorf("sqlite: iterating session rows: %w", err)
	}

	if session.IsZero() {
		return model.Session{}, nil
	}
	return session, nil
}

// Save writes both fields in one transaction.
func (s *SessionStore) Save(ctx context.Context, session model.Session) error {
	if session.IsZero() {
		return apperror.ValidationFailed("session", "refusing to persist a session without token and username")
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning session save: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	now := time.Now().UTC()
	for key, value := range map[string]string{
		s.keys.Token:    session.Token,
		s.keys.Username: session.Username,
	} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: saving session key %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing session: %w", err)
	}
	return nil
}

// Clear removes both fields with a single statement.
func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM session WHERE key IN (?, ?)`,
		s.keys.Token, s.keys.Username,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing session: %w", err)
	}
	return nil
}
