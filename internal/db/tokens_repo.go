package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const apiTokensSchema = `
CREATE TABLE IF NOT EXISTS api_tokens (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	token_hash TEXT NOT NULL,
	token_scope TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL,
	last_used_at DATETIME
);`

// TokenStatus is an API token's own lifecycle, independent of the user
// account it belongs to — a token can be revoked without touching the
// account. Only Active tokens pass the auth chain's apiTokenStrategy.
type TokenStatus string

const (
	TokenStatusActive   TokenStatus = "active"
	TokenStatusInactive TokenStatus = "inactive"
)

// APIToken is a stored API-token row: never the plaintext token, only
// its bcrypt hash (see internal/secrets.HashToken/VerifyToken).
type APIToken struct {
	ID         string
	Name       string
	UserID     string
	TokenHash  string
	TokenScope string
	Status     TokenStatus
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// TokenStore persists API tokens.
type TokenStore struct {
	db *DB
}

// NewTokenStore wraps db as a token repository.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

func (t *TokenStore) Create(ctx context.Context, tok APIToken) error {
	if tok.Status == "" {
		tok.Status = TokenStatusActive
	}
	_, err := t.db.Conn.ExecContext(ctx, `
		INSERT INTO api_tokens (id, name, user_id, token_hash, token_scope, status, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.Name, tok.UserID, tok.TokenHash, tok.TokenScope, string(tok.Status), tok.CreatedAt, tok.LastUsedAt)
	if err != nil {
		return fmt.Errorf("storing api token %s: %w", tok.ID, err)
	}
	return nil
}

// SetStatus revokes or reactivates a token without deleting its row, so
// audit history (creation time, scope) survives revocation.
func (t *TokenStore) SetStatus(ctx context.Context, id string, status TokenStatus) error {
	_, err := t.db.Conn.ExecContext(ctx, `UPDATE api_tokens SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// ListByUser returns every token belonging to userID, for the token
// listing endpoint. Bearer verification goes through ListAll instead.
func (t *TokenStore) ListByUser(ctx context.Context, userID string) ([]APIToken, error) {
	rows, err := t.db.Conn.QueryContext(ctx, `
		SELECT id, name, user_id, token_hash, token_scope, status, created_at, last_used_at
		FROM api_tokens WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing api tokens for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanAPITokens(rows)
}

// ListAll is used by the auth middleware to find the token whose hash
// matches an incoming bearer value, since bcrypt hashes aren't
// queryable by plaintext.
func (t *TokenStore) ListAll(ctx context.Context) ([]APIToken, error) {
	rows, err := t.db.Conn.QueryContext(ctx, `
		SELECT id, name, user_id, token_hash, token_scope, status, created_at, last_used_at FROM api_tokens`)
	if err != nil {
		return nil, fmt.Errorf("listing all api tokens: %w", err)
	}
	defer rows.Close()
	return scanAPITokens(rows)
}

func scanAPITokens(rows *sql.Rows) ([]APIToken, error) {
	var out []APIToken
	for rows.Next() {
		var (
			tok      APIToken
			status   string
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&tok.ID, &tok.Name, &tok.UserID, &tok.TokenHash, &tok.TokenScope, &status, &tok.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning api token: %w", err)
		}
		tok.Status = TokenStatus(status)
		if lastUsed.Valid {
			tok.LastUsedAt = &lastUsed.Time
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

func (t *TokenStore) TouchLastUsed(ctx context.Context, id string, when time.Time) error {
	_, err := t.db.Conn.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, when, id)
	return err
}

func (t *TokenStore) Delete(ctx context.Context, id string) error {
	_, err := t.db.Conn.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	return err
}
