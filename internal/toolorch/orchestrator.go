package toolorch

import (
	"context"
	"fmt"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// InstanceStore and ToolsetStore are the persistence seams the
// orchestrator needs beyond credential/server resolution.
type InstanceStore interface {
	ListInstancesByOwner(ctx context.Context, ownerUserID string) ([]objs.McpInstance, error)
	PutInstance(ctx context.Context, inst objs.McpInstance) error
}

type ToolsetStore interface {
	ListToolsetsByOwner(ctx context.Context, ownerUserID string) ([]objs.Toolset, error)
	GetAppToolsetConfig(ctx context.Context, t objs.ToolsetType) (objs.AppToolsetConfig, error)
}

// ToolsetSecretResolver decrypts a Toolset's stored API key for execution.
type ToolsetSecretResolver interface {
	Decrypt(encoded string) (string, error)
}

// Orchestrator mediates tool calling for one chat request: it resolves a
// requested tool name against the caller's MCP instances and toolsets,
// executes it through the right backend, and returns the canonicalized
// result. Nothing here is held across requests besides the tools_cache
// and app-toolset-grant caches.
type Orchestrator struct {
	instances InstanceStore
	toolsets  ToolsetStore
	mcp       *MCPClient
	exa       *ExaToolset
	appGrants *AppToolsetCache
	secrets   ToolsetSecretResolver
	now       func() time.Time
}

// NewOrchestrator constructs an Orchestrator from its collaborators.
func NewOrchestrator(instances InstanceStore, toolsets ToolsetStore, mcp *MCPClient, exa *ExaToolset, appGrants *AppToolsetCache, secrets ToolsetSecretResolver) *Orchestrator {
	return &Orchestrator{
		instances: instances,
		toolsets:  toolsets,
		mcp:       mcp,
		exa:       exa,
		appGrants: appGrants,
		secrets:   secrets,
		now:       time.Now,
	}
}

// RefreshInstanceTools lists tools for inst via a fresh MCP connect and
// persists the result into ToolsCache, clearing any stale cache first.
// It is the only code that fills ToolsCache; no route handler calls it.
func (o *Orchestrator) RefreshInstanceTools(ctx context.Context, inst objs.McpInstance) (objs.McpInstance, error) {
	inst.InvalidateToolsCache()
	tools, err := o.mcp.ListTools(ctx, inst)
	if err != nil {
		return inst, err
	}
	inst.ToolsCache = tools
	if err := o.instances.PutInstance(ctx, inst); err != nil {
		return inst, fmt.Errorf("persisting refreshed tools cache: %w", err)
	}
	return inst, nil
}

// ExecuteBuiltinToolset runs a built-in toolset call (currently only Exa
// search) on behalf of ownerUserID, enforcing the admin-level
// AppToolsetConfig gate before decrypting the user's own API key.
func (o *Orchestrator) ExecuteBuiltinToolset(ctx context.Context, ownerUserID string, toolsetType objs.ToolsetType, args map[string]any) objs.ToolsetExecutionResponse {
	appCfg, err := o.toolsets.GetAppToolsetConfig(ctx, toolsetType)
	if err != nil || !appCfg.Enabled {
		msg := fmt.Sprintf("toolset %s is disabled", toolsetType)
		return objs.ToolsetExecutionResponse{ToolName: string(toolsetType), Success: false, Error: &msg}
	}

	owned, err := o.toolsets.ListToolsetsByOwner(ctx, ownerUserID)
	if err != nil {
		msg := err.Error()
		return objs.ToolsetExecutionResponse{ToolName: string(toolsetType), Success: false, Error: &msg}
	}
	var match *objs.Toolset
	for i := range owned {
		if owned[i].Type == toolsetType && owned[i].Enabled {
			match = &owned[i]
			break
		}
	}
	if match == nil {
		msg := fmt.Sprintf("no enabled %s toolset configured", toolsetType)
		return objs.ToolsetExecutionResponse{ToolName: string(toolsetType), Success: false, Error: &msg}
	}

	apiKey, err := o.secrets.Decrypt(match.EncryptedAPIKey)
	if err != nil {
		msg := fmt.Sprintf("decrypting toolset credential: %v", err)
		return objs.ToolsetExecutionResponse{ToolName: string(toolsetType), Success: false, Error: &msg}
	}

	switch toolsetType {
	case objs.ToolsetTypeExaSearch:
		query, _ := args["query"].(string)
		numResults, _ := args["num_results"].(int)
		return o.exa.Search(ctx, apiKey, query, numResults)
	default:
		msg := fmt.Sprintf("unsupported toolset type %s", toolsetType)
		return objs.ToolsetExecutionResponse{ToolName: string(toolsetType), Success: false, Error: &msg}
	}
}

// ExecuteMCPTool runs toolName against a specific MCP instance over a
// fresh connection; inst.ToolsCache is not consulted (list_tools and
// call_tool are independent RPCs, each a fresh connect).
func (o *Orchestrator) ExecuteMCPTool(ctx context.Context, inst objs.McpInstance, toolName string, args map[string]any) objs.ToolsetExecutionResponse {
	return o.mcp.CallTool(ctx, inst, toolName, args)
}

// AuthorizeExternalAppTool checks whether ext's cached (or freshly
// fetched) grant approves toolsetID, re-requesting from the identity
// provider through appGrants when the cache is missing or expired.
func (o *Orchestrator) AuthorizeExternalAppTool(ctx context.Context, ext objs.ExternalApp, toolsetID string) (bool, error) {
	grant, err := o.appGrants.Grant(ctx, ext)
	if err != nil {
		return false, fmt.Errorf("%w: fetching app toolset grant: %v", objs.ErrUpstreamUnavailable, err)
	}
	return grant.ApprovedForToolset(toolsetID), nil
}
