package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	access_token TEXT NOT NULL,
	oauth_client_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);`

// Session is a persisted login session, keyed by the opaque cookie value
// the browser presents. oauth_client_id identifies which key of the
// decoded access token's resource_access map holds this installation's
// roles.
type Session struct {
	ID            string
	UserID        string
	AccessToken   string
	OAuthClientID string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session must be treated as absent.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists login sessions in their own SQLite file
// (session.sqlite, per the filesystem layout), separate from the app
// database so that clearing sessions never touches aliases/downloads/etc.
type SessionStore struct {
	conn *sql.DB
}

// OpenSessionStore opens (creating if absent) the dedicated sessions
// database at path and ensures its schema exists.
func OpenSessionStore(path string) (*SessionStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating session database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}
	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}
	if _, err := conn.Exec(sessionsSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating session database: %w", err)
	}
	return &SessionStore{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (s *SessionStore) Close() error {
	return s.conn.Close()
}

func (s *SessionStore) Put(ctx context.Context, sess Session) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, access_token, oauth_client_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token, oauth_client_id = excluded.oauth_client_id,
			expires_at = excluded.expires_at`,
		sess.ID, sess.UserID, sess.AccessToken, sess.OAuthClientID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storing session %s: %w", sess.ID, err)
	}
	return nil
}

// Get loads a session by id, regardless of whether it has expired —
// callers check Session.Expired themselves so expiry handling stays in
// one place (the auth middleware's sessionStrategy).
func (s *SessionStore) Get(ctx context.Context, id string) (Session, bool, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, access_token, oauth_client_id, created_at, expires_at
		FROM sessions WHERE id = ?`, id)
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.AccessToken, &sess.OAuthClientID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpired purges sessions whose expiry is at or before now and
// returns how many were removed. Nothing in the application schedules it.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
