package objs

import "time"

// McpAuthType selects how an McpInstance authenticates to its server.
type McpAuthType string

const (
	McpAuthPublic McpAuthType = "public"
	McpAuthHeader McpAuthType = "header"
	McpAuthOAuth  McpAuthType = "oauth"
)

// McpServer is the admin-owned registry entry for a reachable MCP
// endpoint; its URL is unique case-insensitively.
type McpServer struct {
	ID          string
	URL         string
	Name        string
	Description *string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

// McpInstance binds a user to an McpServer under a per-owner-unique slug,
// with its own auth configuration and a cached tool list.
type McpInstance struct {
	ID          string
	OwnerUserID string
	McpServerID string
	Slug        string
	Enabled     bool
	ToolsCache  []McpToolDescriptor
	ToolsFilter []string
	AuthType    McpAuthType
	AuthUUID    *string
}

// McpToolDescriptor is one entry of an McpInstance.ToolsCache — the
// subset of an MCP tool definition bodhi persists for catalog display
// without reconnecting to the server.
type McpToolDescriptor struct {
	Name        string
	Description string
}

// InvalidateToolsCache clears the cached tool list; the orchestrator's
// RefreshInstanceTools calls it before re-listing an instance's tools.
func (m *McpInstance) InvalidateToolsCache() {
	m.ToolsCache = nil
}

// McpOAuthConfig holds the OAuth client credentials an McpInstance with
// AuthType == McpAuthOAuth uses to authenticate to its server.
type McpOAuthConfig struct {
	ID                string
	McpInstanceID     string
	ClientID          string
	EncryptedSecret   string
	AuthorizationURL  string
	TokenURL          string
	Scopes            []string
}

// McpOAuthToken is the (encrypted) token material obtained for an
// McpOAuthConfig, refreshed as needed before each per-request connect.
type McpOAuthToken struct {
	ID                  string
	McpOAuthConfigID    string
	EncryptedAccessTok  string
	EncryptedRefreshTok *string
	ExpiresAt           time.Time
}

// Expired reports whether the token must be refreshed before use.
func (t McpOAuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ToolsetType enumerates bodhi's built-in (non-MCP) tool integrations.
type ToolsetType string

const (
	ToolsetTypeExaSearch ToolsetType = "builtin-exa-search"
)

// Toolset is a user-owned instance of a built-in tool integration.
type Toolset struct {
	ID              string
	OwnerUserID     string
	Type            ToolsetType
	Enabled         bool
	EncryptedAPIKey string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppToolsetConfig is the admin-level enable/disable switch for a
// ToolsetType, independent of any individual user's Toolset rows.
type AppToolsetConfig struct {
	Type    ToolsetType
	Enabled bool
}

// ToolsetExecutionResponse is the canonicalized result of executing any
// toolset or MCP tool, regardless of the underlying transport.
type ToolsetExecutionResponse struct {
	ToolName string         `json:"tool_name"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result,omitempty"`
	Error    *string        `json:"error,omitempty"`
}
