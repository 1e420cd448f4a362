package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

const userAliasesSchema = `
CREATE TABLE IF NOT EXISTS user_aliases (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	repo TEXT NOT NULL,
	filename TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	request_params TEXT NOT NULL DEFAULT '{}',
	context_params TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`

const apiAliasesSchema = `
CREATE TABLE IF NOT EXISTS api_aliases (
	id TEXT PRIMARY KEY,
	api_format TEXT NOT NULL,
	base_url TEXT NOT NULL,
	models TEXT NOT NULL DEFAULT '[]',
	prefix TEXT,
	forward_all_with_prefix INTEGER NOT NULL DEFAULT 0,
	models_cache TEXT NOT NULL DEFAULT '[]',
	cache_fetched_at DATETIME,
	encrypted_api_key TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`

// AliasStore implements catalog.UserAliasStore and catalog.APIAliasStore
// against the user_aliases/api_aliases tables.
type AliasStore struct {
	db *DB
}

// NewAliasStore wraps db as an alias repository.
func NewAliasStore(db *DB) *AliasStore {
	return &AliasStore{db: db}
}

func (a *AliasStore) ListUserAliases(ctx context.Context) ([]objs.UserAlias, error) {
	rows, err := a.db.Conn.QueryContext(ctx, `
		SELECT id, name, repo, filename, snapshot, request_params, context_params, created_at, updated_at
		FROM user_aliases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing user aliases: %w", err)
	}
	defer rows.Close()

	var out []objs.UserAlias
	for rows.Next() {
		ua, err := scanUserAlias(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

func (a *AliasStore) GetUserAlias(ctx context.Context, id string) (objs.UserAlias, bool, error) {
	row := a.db.Conn.QueryRowContext(ctx, `
		SELECT id, name, repo, filename, snapshot, request_params, context_params, created_at, updated_at
		FROM user_aliases WHERE id = ?`, id)
	ua, err := scanUserAlias(row)
	if err == sql.ErrNoRows {
		return objs.UserAlias{}, false, nil
	}
	if err != nil {
		return objs.UserAlias{}, false, fmt.Errorf("getting user alias %s: %w", id, err)
	}
	return ua, true, nil
}

func (a *AliasStore) PutUserAlias(ctx context.Context, alias objs.UserAlias) error {
	requestParams, err := json.Marshal(alias.RequestParams)
	if err != nil {
		return fmt.Errorf("encoding request_params: %w", err)
	}
	contextParams, err := json.Marshal(alias.ContextParams)
	if err != nil {
		return fmt.Errorf("encoding context_params: %w", err)
	}
	_, err = a.db.Conn.ExecContext(ctx, `
		INSERT INTO user_aliases (id, name, repo, filename, snapshot, request_params, context_params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, repo = excluded.repo, filename = excluded.filename,
			snapshot = excluded.snapshot, request_params = excluded.request_params,
			context_params = excluded.context_params, updated_at = excluded.updated_at`,
		alias.ID, alias.Name, alias.Repo.String(), alias.Filename, alias.Snapshot,
		string(requestParams), string(contextParams), alias.CreatedAt, alias.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing user alias %s: %w", alias.ID, err)
	}
	return nil
}

func (a *AliasStore) DeleteUserAlias(ctx context.Context, id string) error {
	_, err := a.db.Conn.ExecContext(ctx, `DELETE FROM user_aliases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user alias %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserAlias(row rowScanner) (objs.UserAlias, error) {
	var (
		id, name, repoStr, filename, snapshot string
		requestParamsJSON, contextParamsJSON  string
		createdAt, updatedAt                  time.Time
	)
	if err := row.Scan(&id, &name, &repoStr, &filename, &snapshot, &requestParamsJSON, &contextParamsJSON, &createdAt, &updatedAt); err != nil {
		return objs.UserAlias{}, err
	}
	repo, err := objs.ParseRepo(repoStr)
	if err != nil {
		return objs.UserAlias{}, fmt.Errorf("parsing stored repo %q: %w", repoStr, err)
	}
	var params objs.OAIRequestParams
	if err := json.Unmarshal([]byte(requestParamsJSON), &params); err != nil {
		return objs.UserAlias{}, fmt.Errorf("decoding request_params: %w", err)
	}
	var contextParams []string
	if err := json.Unmarshal([]byte(contextParamsJSON), &contextParams); err != nil {
		return objs.UserAlias{}, fmt.Errorf("decoding context_params: %w", err)
	}
	return objs.UserAlias{
		ID: id, Name: name, Repo: repo, Filename: filename, Snapshot: snapshot,
		RequestParams: params, ContextParams: contextParams,
		CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

func (a *AliasStore) ListAPIAliases(ctx context.Context) ([]objs.APIAlias, error) {
	rows, err := a.db.Conn.QueryContext(ctx, `
		SELECT id, api_format, base_url, models, prefix, forward_all_with_prefix,
			models_cache, cache_fetched_at, encrypted_api_key, created_at, updated_at
		FROM api_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing api aliases: %w", err)
	}
	defer rows.Close()

	var out []objs.APIAlias
	for rows.Next() {
		var (
			id, format, baseURL, modelsJSON, modelsCacheJSON string
			prefix, encryptedKey                             sql.NullString
			forwardAll                                       bool
			cacheFetchedAt                                   sql.NullTime
			createdAt, updatedAt                             time.Time
		)
		if err := rows.Scan(&id, &format, &baseURL, &modelsJSON, &prefix, &forwardAll,
			&modelsCacheJSON, &cacheFetchedAt, &encryptedKey, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning api alias: %w", err)
		}
		var models, modelsCache []string
		if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
			return nil, fmt.Errorf("decoding models: %w", err)
		}
		if err := json.Unmarshal([]byte(modelsCacheJSON), &modelsCache); err != nil {
			return nil, fmt.Errorf("decoding models_cache: %w", err)
		}
		alias := objs.APIAlias{
			ID: id, APIFormat: objs.APIFormat(format), BaseURL: baseURL, Models: models,
			ForwardAllWithPrefix: forwardAll, ModelsCache: modelsCache,
			CreatedAt: createdAt, UpdatedAt: updatedAt,
		}
		if prefix.Valid {
			alias.Prefix = &prefix.String
		}
		if cacheFetchedAt.Valid {
			alias.CacheFetchedAt = &cacheFetchedAt.Time
		}
		if encryptedKey.Valid {
			alias.EncryptedAPIKey = &encryptedKey.String
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

// PutAPIAlias inserts or replaces an API alias. EncryptedAPIKey is
// expected to already be ciphertext from internal/secrets.Encryptor —
// this layer never sees plaintext API keys.
func (a *AliasStore) PutAPIAlias(ctx context.Context, alias objs.APIAlias) error {
	modelsJSON, err := json.Marshal(alias.Models)
	if err != nil {
		return fmt.Errorf("encoding models: %w", err)
	}
	modelsCacheJSON, err := json.Marshal(alias.ModelsCache)
	if err != nil {
		return fmt.Errorf("encoding models_cache: %w", err)
	}
	_, err = a.db.Conn.ExecContext(ctx, `
		INSERT INTO api_aliases (id, api_format, base_url, models, prefix, forward_all_with_prefix,
			models_cache, cache_fetched_at, encrypted_api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_format = excluded.api_format, base_url = excluded.base_url, models = excluded.models,
			prefix = excluded.prefix, forward_all_with_prefix = excluded.forward_all_with_prefix,
			models_cache = excluded.models_cache, cache_fetched_at = excluded.cache_fetched_at,
			encrypted_api_key = excluded.encrypted_api_key, updated_at = excluded.updated_at`,
		alias.ID, string(alias.APIFormat), alias.BaseURL, string(modelsJSON),
		nullableString(alias.Prefix), alias.ForwardAllWithPrefix, string(modelsCacheJSON),
		alias.CacheFetchedAt, nullableString(alias.EncryptedAPIKey),
		alias.CreatedAt, alias.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing api alias %s: %w", alias.ID, err)
	}
	return nil
}

func (a *AliasStore) DeleteAPIAlias(ctx context.Context, id string) error {
	_, err := a.db.Conn.ExecContext(ctx, `DELETE FROM api_aliases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting api alias %s: %w", id, err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
