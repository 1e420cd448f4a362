package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

const appInstanceSchema = `
CREATE TABLE IF NOT EXISTS app_instance (
	client_id TEXT PRIMARY KEY,
	encrypted_secret TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`

const accessRequestsSchema = `
CREATE TABLE IF NOT EXISTS access_requests (
	id TEXT PRIMARY KEY,
	app_client_id TEXT NOT NULL,
	flow_type TEXT NOT NULL,
	redirect_uri TEXT,
	status TEXT NOT NULL,
	requested TEXT NOT NULL DEFAULT '{}',
	approved TEXT NOT NULL DEFAULT '{}',
	user_id TEXT,
	requested_role TEXT,
	approved_role TEXT,
	access_request_scope TEXT,
	error_message TEXT,
	expires_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_requests_app_client
	ON access_requests (app_client_id, status);`

// AppStore persists the single-row AppInstance (bodhi's own OAuth2
// client registration) and the AppAccessRequest ledger.
type AppStore struct {
	db *DB
}

// NewAppStore wraps db as the app-instance/access-request repository.
func NewAppStore(db *DB) *AppStore {
	return &AppStore{db: db}
}

// GetInstance returns the sole app instance row, if one has been created.
func (s *AppStore) GetInstance(ctx context.Context) (objs.AppInstance, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx, `
		SELECT client_id, encrypted_secret, status, created_at, updated_at FROM app_instance LIMIT 1`)
	var (
		inst   objs.AppInstance
		status string
	)
	err := row.Scan(&inst.ClientID, &inst.EncryptedSecret, &status, &inst.CreatedAt, &inst.UpdatedAt)
	if err == sql.ErrNoRows {
		return objs.AppInstance{}, false, nil
	}
	if err != nil {
		return objs.AppInstance{}, false, fmt.Errorf("getting app instance: %w", err)
	}
	inst.Status = objs.AppStatus(status)
	return inst, true, nil
}

// PutInstance inserts or updates the single app-instance row. Because
// at most one row can ever exist, callers key the upsert on client_id
// rather than a fixed sentinel id.
func (s *AppStore) PutInstance(ctx context.Context, inst objs.AppInstance) error {
	_, err := s.db.Conn.ExecContext(ctx, `
		INSERT INTO app_instance (client_id, encrypted_secret, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			encrypted_secret = excluded.encrypted_secret, status = excluded.status,
			updated_at = excluded.updated_at`,
		inst.ClientID, inst.EncryptedSecret, string(inst.Status), inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing app instance: %w", err)
	}
	return nil
}

func (s *AppStore) CreateAccessRequest(ctx context.Context, r objs.AppAccessRequest) error {
	requested, err := json.Marshal(r.Requested)
	if err != nil {
		return fmt.Errorf("encoding requested: %w", err)
	}
	approved, err := json.Marshal(r.Approved)
	if err != nil {
		return fmt.Errorf("encoding approved: %w", err)
	}
	_, err = s.db.Conn.ExecContext(ctx, `
		INSERT INTO access_requests
			(id, app_client_id, flow_type, redirect_uri, status, requested, approved,
			 user_id, requested_role, approved_role, access_request_scope, error_message,
			 expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AppClientID, string(r.FlowType), nullableString(r.RedirectURI), string(r.Status),
		string(requested), string(approved), nullableString(r.UserID),
		nullableRole(r.RequestedRole), nullableRole(r.ApprovedRole), nullableString(r.AccessRequestScope),
		nullableString(r.ErrorMessage), r.ExpiresAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storing access request %s: %w", r.ID, err)
	}
	return nil
}

// UpdateAccessRequest persists the result of calling (*objs.AppAccessRequest).Resolve.
func (s *AppStore) UpdateAccessRequest(ctx context.Context, r objs.AppAccessRequest) error {
	approved, err := json.Marshal(r.Approved)
	if err != nil {
		return fmt.Errorf("encoding approved: %w", err)
	}
	_, err = s.db.Conn.ExecContext(ctx, `
		UPDATE access_requests SET
			status = ?, approved = ?, user_id = ?, approved_role = ?,
			error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), string(approved), nullableString(r.UserID), nullableRole(r.ApprovedRole),
		nullableString(r.ErrorMessage), r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("updating access request %s: %w", r.ID, err)
	}
	return nil
}

func (s *AppStore) GetAccessRequest(ctx context.Context, id string) (objs.AppAccessRequest, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx, `
		SELECT id, app_client_id, flow_type, redirect_uri, status, requested, approved,
			user_id, requested_role, approved_role, access_request_scope, error_message,
			expires_at, created_at, updated_at
		FROM access_requests WHERE id = ?`, id)
	r, err := scanAccessRequest(row)
	if err == sql.ErrNoRows {
		return objs.AppAccessRequest{}, false, nil
	}
	if err != nil {
		return objs.AppAccessRequest{}, false, fmt.Errorf("getting access request %s: %w", id, err)
	}
	return r, true, nil
}

func (s *AppStore) ListAccessRequestsByApp(ctx context.Context, appClientID string) ([]objs.AppAccessRequest, error) {
	rows, err := s.db.Conn.QueryContext(ctx, `
		SELECT id, app_client_id, flow_type, redirect_uri, status, requested, approved,
			user_id, requested_role, approved_role, access_request_scope, error_message,
			expires_at, created_at, updated_at
		FROM access_requests WHERE app_client_id = ? ORDER BY created_at DESC`, appClientID)
	if err != nil {
		return nil, fmt.Errorf("listing access requests for %s: %w", appClientID, err)
	}
	defer rows.Close()

	var out []objs.AppAccessRequest
	for rows.Next() {
		r, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAccessRequest(row rowScanner) (objs.AppAccessRequest, error) {
	var (
		r                           objs.AppAccessRequest
		flowType, status            string
		redirectURI, userID         sql.NullString
		requestedRole, approvedRole sql.NullString
		accessScope, errorMessage   sql.NullString
		requestedJSON, approvedJSON string
		expiresAt                   sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.AppClientID, &flowType, &redirectURI, &status, &requestedJSON, &approvedJSON,
		&userID, &requestedRole, &approvedRole, &accessScope, &errorMessage,
		&expiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return objs.AppAccessRequest{}, err
	}
	r.FlowType = objs.AccessRequestFlowType(flowType)
	r.Status = objs.AccessRequestStatus(status)
	if err := json.Unmarshal([]byte(requestedJSON), &r.Requested); err != nil {
		return objs.AppAccessRequest{}, fmt.Errorf("decoding requested: %w", err)
	}
	if err := json.Unmarshal([]byte(approvedJSON), &r.Approved); err != nil {
		return objs.AppAccessRequest{}, fmt.Errorf("decoding approved: %w", err)
	}
	if redirectURI.Valid {
		r.RedirectURI = &redirectURI.String
	}
	if userID.Valid {
		r.UserID = &userID.String
	}
	if requestedRole.Valid {
		role, err := objs.ParseResourceRole(requestedRole.String)
		if err != nil {
			return objs.AppAccessRequest{}, fmt.Errorf("decoding requested_role: %w", err)
		}
		r.RequestedRole = &role
	}
	if approvedRole.Valid {
		role, err := objs.ParseResourceRole(approvedRole.String)
		if err != nil {
			return objs.AppAccessRequest{}, fmt.Errorf("decoding approved_role: %w", err)
		}
		r.ApprovedRole = &role
	}
	if accessScope.Valid {
		r.AccessRequestScope = &accessScope.String
	}
	if errorMessage.Valid {
		r.ErrorMessage = &errorMessage.String
	}
	if expiresAt.Valid {
		r.ExpiresAt = &expiresAt.Time
	}
	return r, nil
}

func nullableRole(r *objs.ResourceRole) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: r.String(), Valid: true}
}
