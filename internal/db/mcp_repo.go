package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

const mcpServersSchema = `
CREATE TABLE IF NOT EXISTS mcp_servers (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL COLLATE NOCASE UNIQUE,
	name TEXT NOT NULL,
	description TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	created_by TEXT NOT NULL
);`

const mcpInstancesSchema = `
CREATE TABLE IF NOT EXISTS mcp_instances (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	mcp_server_id TEXT NOT NULL REFERENCES mcp_servers(id) ON DELETE CASCADE,
	slug TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	tools_cache TEXT NOT NULL DEFAULT '[]',
	tools_filter TEXT NOT NULL DEFAULT '[]',
	auth_type TEXT NOT NULL,
	auth_uuid TEXT,
	UNIQUE(owner_user_id, slug)
);`

const mcpOAuthTokensSchema = `
CREATE TABLE IF NOT EXISTS mcp_oauth_configs (
	id TEXT PRIMARY KEY,
	mcp_instance_id TEXT NOT NULL REFERENCES mcp_instances(id) ON DELETE CASCADE,
	client_id TEXT NOT NULL,
	encrypted_secret TEXT NOT NULL,
	authorization_url TEXT NOT NULL,
	token_url TEXT NOT NULL,
	scopes TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS mcp_oauth_tokens (
	id TEXT PRIMARY KEY,
	mcp_oauth_config_id TEXT NOT NULL REFERENCES mcp_oauth_configs(id) ON DELETE CASCADE,
	encrypted_access_token TEXT NOT NULL,
	encrypted_refresh_token TEXT,
	expires_at DATETIME NOT NULL
);`

const toolsetsSchema = `
CREATE TABLE IF NOT EXISTS toolsets (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	encrypted_api_key TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(owner_user_id, type)
);`

const appToolsetConfigsSchema = `
CREATE TABLE IF NOT EXISTS app_toolset_configs (
	type TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 1
);`

// McpStore persists the MCP server registry, per-user instances, their
// OAuth configuration/tokens, and built-in toolsets.
type McpStore struct {
	db *DB
}

// NewMcpStore wraps db as the MCP-catalog repository.
func NewMcpStore(db *DB) *McpStore {
	return &McpStore{db: db}
}

func (m *McpStore) PutServer(ctx context.Context, s objs.McpServer) error {
	_, err := m.db.Conn.ExecContext(ctx, `
		INSERT INTO mcp_servers (id, url, name, description, enabled, created_at, updated_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url, name = excluded.name, description = excluded.description,
			enabled = excluded.enabled, updated_at = excluded.updated_at`,
		s.ID, s.URL, s.Name, nullableString(s.Description), s.Enabled, s.CreatedAt, s.UpdatedAt, s.CreatedBy)
	if err != nil {
		return fmt.Errorf("storing mcp server %s: %w", s.ID, err)
	}
	return nil
}

func (m *McpStore) ListServers(ctx context.Context) ([]objs.McpServer, error) {
	rows, err := m.db.Conn.QueryContext(ctx, `
		SELECT id, url, name, description, enabled, created_at, updated_at, created_by
		FROM mcp_servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing mcp servers: %w", err)
	}
	defer rows.Close()

	var out []objs.McpServer
	for rows.Next() {
		var (
			s           objs.McpServer
			description sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.URL, &s.Name, &description, &s.Enabled, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy); err != nil {
			return nil, fmt.Errorf("scanning mcp server: %w", err)
		}
		if description.Valid {
			s.Description = &description.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *McpStore) DeleteServer(ctx context.Context, id string) error {
	_, err := m.db.Conn.ExecContext(ctx, `DELETE FROM mcp_servers WHERE id = ?`, id)
	return err
}

func (m *McpStore) GetServer(ctx context.Context, id string) (objs.McpServer, bool, error) {
	row := m.db.Conn.QueryRowContext(ctx, `
		SELECT id, url, name, description, enabled, created_at, updated_at, created_by
		FROM mcp_servers WHERE id = ?`, id)
	var (
		s           objs.McpServer
		description sql.NullString
	)
	err := row.Scan(&s.ID, &s.URL, &s.Name, &description, &s.Enabled, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy)
	if err == sql.ErrNoRows {
		return objs.McpServer{}, false, nil
	}
	if err != nil {
		return objs.McpServer{}, false, fmt.Errorf("getting mcp server %s: %w", id, err)
	}
	if description.Valid {
		s.Description = &description.String
	}
	return s, true, nil
}

func (m *McpStore) PutInstance(ctx context.Context, inst objs.McpInstance) error {
	toolsCache, err := json.Marshal(inst.ToolsCache)
	if err != nil {
		return fmt.Errorf("encoding tools_cache: %w", err)
	}
	toolsFilter, err := json.Marshal(inst.ToolsFilter)
	if err != nil {
		return fmt.Errorf("encoding tools_filter: %w", err)
	}
	_, err = m.db.Conn.ExecContext(ctx, `
		INSERT INTO mcp_instances (id, owner_user_id, mcp_server_id, slug, enabled, tools_cache, tools_filter, auth_type, auth_uuid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled, tools_cache = excluded.tools_cache,
			tools_filter = excluded.tools_filter, auth_type = excluded.auth_type,
			auth_uuid = excluded.auth_uuid`,
		inst.ID, inst.OwnerUserID, inst.McpServerID, inst.Slug, inst.Enabled,
		string(toolsCache), string(toolsFilter), string(inst.AuthType), nullableString(inst.AuthUUID))
	if err != nil {
		return fmt.Errorf("storing mcp instance %s: %w", inst.ID, err)
	}
	return nil
}

func (m *McpStore) ListInstancesByOwner(ctx context.Context, ownerUserID string) ([]objs.McpInstance, error) {
	rows, err := m.db.Conn.QueryContext(ctx, `
		SELECT id, owner_user_id, mcp_server_id, slug, enabled, tools_cache, tools_filter, auth_type, auth_uuid
		FROM mcp_instances WHERE owner_user_id = ? ORDER BY slug`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("listing mcp instances for %s: %w", ownerUserID, err)
	}
	defer rows.Close()

	var out []objs.McpInstance
	for rows.Next() {
		inst, err := scanMcpInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanMcpInstance(row rowScanner) (objs.McpInstance, error) {
	var (
		inst                       objs.McpInstance
		authType                   string
		authUUID                   sql.NullString
		toolsCacheJSON, filterJSON string
	)
	if err := row.Scan(&inst.ID, &inst.OwnerUserID, &inst.McpServerID, &inst.Slug, &inst.Enabled,
		&toolsCacheJSON, &filterJSON, &authType, &authUUID); err != nil {
		return objs.McpInstance{}, err
	}
	inst.AuthType = objs.McpAuthType(authType)
	if authUUID.Valid {
		inst.AuthUUID = &authUUID.String
	}
	if err := json.Unmarshal([]byte(toolsCacheJSON), &inst.ToolsCache); err != nil {
		return objs.McpInstance{}, fmt.Errorf("decoding tools_cache: %w", err)
	}
	if err := json.Unmarshal([]byte(filterJSON), &inst.ToolsFilter); err != nil {
		return objs.McpInstance{}, fmt.Errorf("decoding tools_filter: %w", err)
	}
	return inst, nil
}

func (m *McpStore) DeleteInstance(ctx context.Context, id string) error {
	_, err := m.db.Conn.ExecContext(ctx, `DELETE FROM mcp_instances WHERE id = ?`, id)
	return err
}

func (m *McpStore) PutOAuthConfig(ctx context.Context, cfg objs.McpOAuthConfig) error {
	scopes, err := json.Marshal(cfg.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}
	_, err = m.db.Conn.ExecContext(ctx, `
		INSERT INTO mcp_oauth_configs (id, mcp_instance_id, client_id, encrypted_secret, authorization_url, token_url, scopes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id, encrypted_secret = excluded.encrypted_secret,
			authorization_url = excluded.authorization_url, token_url = excluded.token_url,
			scopes = excluded.scopes`,
		cfg.ID, cfg.McpInstanceID, cfg.ClientID, cfg.EncryptedSecret, cfg.AuthorizationURL, cfg.TokenURL, string(scopes))
	if err != nil {
		return fmt.Errorf("storing mcp oauth config %s: %w", cfg.ID, err)
	}
	return nil
}

func (m *McpStore) PutOAuthToken(ctx context.Context, tok objs.McpOAuthToken) error {
	_, err := m.db.Conn.ExecContext(ctx, `
		INSERT INTO mcp_oauth_tokens (id, mcp_oauth_config_id, encrypted_access_token, encrypted_refresh_token, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			encrypted_access_token = excluded.encrypted_access_token,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			expires_at = excluded.expires_at`,
		tok.ID, tok.McpOAuthConfigID, tok.EncryptedAccessTok, nullableString(tok.EncryptedRefreshTok), tok.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storing mcp oauth token %s: %w", tok.ID, err)
	}
	return nil
}

func (m *McpStore) GetOAuthConfigByInstance(ctx context.Context, instanceID string) (objs.McpOAuthConfig, bool, error) {
	row := m.db.Conn.QueryRowContext(ctx, `
		SELECT id, mcp_instance_id, client_id, encrypted_secret, authorization_url, token_url, scopes
		FROM mcp_oauth_configs WHERE mcp_instance_id = ?`, instanceID)
	var (
		cfg        objs.McpOAuthConfig
		scopesJSON string
	)
	err := row.Scan(&cfg.ID, &cfg.McpInstanceID, &cfg.ClientID, &cfg.EncryptedSecret, &cfg.AuthorizationURL, &cfg.TokenURL, &scopesJSON)
	if err == sql.ErrNoRows {
		return objs.McpOAuthConfig{}, false, nil
	}
	if err != nil {
		return objs.McpOAuthConfig{}, false, fmt.Errorf("getting mcp oauth config for instance %s: %w", instanceID, err)
	}
	if err := json.Unmarshal([]byte(scopesJSON), &cfg.Scopes); err != nil {
		return objs.McpOAuthConfig{}, false, fmt.Errorf("decoding oauth scopes: %w", err)
	}
	return cfg, true, nil
}

func (m *McpStore) GetOAuthTokenByConfig(ctx context.Context, configID string) (objs.McpOAuthToken, bool, error) {
	row := m.db.Conn.QueryRowContext(ctx, `
		SELECT id, mcp_oauth_config_id, encrypted_access_token, encrypted_refresh_token, expires_at
		FROM mcp_oauth_tokens WHERE mcp_oauth_config_id = ?`, configID)
	var (
		tok          objs.McpOAuthToken
		refreshToken sql.NullString
	)
	err := row.Scan(&tok.ID, &tok.McpOAuthConfigID, &tok.EncryptedAccessTok, &refreshToken, &tok.ExpiresAt)
	if err == sql.ErrNoRows {
		return objs.McpOAuthToken{}, false, nil
	}
	if err != nil {
		return objs.McpOAuthToken{}, false, fmt.Errorf("getting mcp oauth token for config %s: %w", configID, err)
	}
	if refreshToken.Valid {
		tok.EncryptedRefreshTok = &refreshToken.String
	}
	return tok, true, nil
}

func (m *McpStore) PutToolset(ctx context.Context, ts objs.Toolset) error {
	_, err := m.db.Conn.ExecContext(ctx, `
		INSERT INTO toolsets (id, owner_user_id, type, enabled, encrypted_api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled, encrypted_api_key = excluded.encrypted_api_key,
			updated_at = excluded.updated_at`,
		ts.ID, ts.OwnerUserID, string(ts.Type), ts.Enabled, ts.EncryptedAPIKey, ts.CreatedAt, ts.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing toolset %s: %w", ts.ID, err)
	}
	return nil
}

func (m *McpStore) ListToolsetsByOwner(ctx context.Context, ownerUserID string) ([]objs.Toolset, error) {
	rows, err := m.db.Conn.QueryContext(ctx, `
		SELECT id, owner_user_id, type, enabled, encrypted_api_key, created_at, updated_at
		FROM toolsets WHERE owner_user_id = ? ORDER BY type`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("listing toolsets for %s: %w", ownerUserID, err)
	}
	defer rows.Close()

	var out []objs.Toolset
	for rows.Next() {
		var ts objs.Toolset
		var typ string
		if err := rows.Scan(&ts.ID, &ts.OwnerUserID, &typ, &ts.Enabled, &ts.EncryptedAPIKey, &ts.CreatedAt, &ts.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning toolset: %w", err)
		}
		ts.Type = objs.ToolsetType(typ)
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (m *McpStore) GetAppToolsetConfig(ctx context.Context, t objs.ToolsetType) (objs.AppToolsetConfig, error) {
	var cfg objs.AppToolsetConfig
	var typ string
	err := m.db.Conn.QueryRowContext(ctx, `SELECT type, enabled FROM app_toolset_configs WHERE type = ?`, string(t)).
		Scan(&typ, &cfg.Enabled)
	if err == sql.ErrNoRows {
		return objs.AppToolsetConfig{Type: t, Enabled: true}, nil
	}
	if err != nil {
		return objs.AppToolsetConfig{}, fmt.Errorf("getting app toolset config %s: %w", t, err)
	}
	cfg.Type = objs.ToolsetType(typ)
	return cfg, nil
}

func (m *McpStore) SetAppToolsetConfig(ctx context.Context, cfg objs.AppToolsetConfig) error {
	_, err := m.db.Conn.ExecContext(ctx, `
		INSERT INTO app_toolset_configs (type, enabled) VALUES (?, ?)
		ON CONFLICT(type) DO UPDATE SET enabled = excluded.enabled`,
		string(cfg.Type), cfg.Enabled)
	if err != nil {
		return fmt.Errorf("storing app toolset config %s: %w", cfg.Type, err)
	}
	return nil
}
