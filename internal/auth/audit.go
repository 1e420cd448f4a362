package auth

import (
	"context"
	"time"
)

// AuditEvent records a security-relevant action: login, logout, role
// change, access-request resolution, API token creation/revocation.
type AuditEvent struct {
	EventType    string // "auth.login", "access_request.approved", "token.revoked", ...
	Timestamp    time.Time
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      string // "success", "failure", "denied"
	Metadata     map[string]any
}

// AuditFilter narrows an AuditLogger.Query call; zero-valued fields are
// not applied as filters.
type AuditFilter struct {
	EventTypes   []string
	UserID       string
	StartTime    time.Time
	EndTime      time.Time
	ResourceType string
	Limit        int
	Offset       int
}

// AuditLogger is the capability interface the auth package and the admin
// handlers write security events through. The composition root wires a
// SQLite-backed implementation over the same bodhi.sqlite connection pool
// as the other repositories; NopAuditLogger is used when audit retention
// is disabled.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
	Flush(ctx context.Context) error
}

// NopAuditLogger discards every event. Used in tests and in deployments
// that opt out of audit retention.
type NopAuditLogger struct{}

func (NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

func (NopAuditLogger) Query(context.Context, AuditFilter) ([]AuditEvent, error) {
	return nil, nil
}

func (NopAuditLogger) Flush(context.Context) error { return nil }

var _ AuditLogger = NopAuditLogger{}
