// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package toolorch mediates tool calling for a chat request: built-in
// toolsets (Exa search), MCP servers (per-request connect, no held
// connections), and external-app tool routing. Grounded on
// freepik-company-knowledge-agent/internal/mcp/factory.go's transport
// construction, with the adk/mcptoolset wrapper that file builds on
// dropped in favor of calling modelcontextprotocol/go-sdk/mcp directly.
package toolorch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// ServerResolver looks up the McpServer an McpInstance is bound to.
type ServerResolver interface {
	GetServer(ctx context.Context, id string) (objs.McpServer, bool, error)
}

// CredentialResolver decrypts the auth material an McpInstance needs to
// connect: the header token for McpAuthHeader, or a valid (refreshed if
// needed) access token for McpAuthOAuth.
type CredentialResolver interface {
	HeaderCredential(ctx context.Context, inst objs.McpInstance) (string, error)
	OAuthAccessToken(ctx context.Context, inst objs.McpInstance) (string, error)
}

// MCPClient connects fresh to an MCP server for the duration of a single
// operation, per the no-held-connections design: every call here opens a
// transport, does its RPC, and disconnects before returning.
type MCPClient struct {
	servers     ServerResolver
	credentials CredentialResolver
	httpTimeout time.Duration
	clientInfo  *mcp.Implementation
}

// NewMCPClient constructs a client against the given server and
// credential resolvers.
func NewMCPClient(servers ServerResolver, credentials CredentialResolver) *MCPClient {
	return &MCPClient{
		servers:     servers,
		credentials: credentials,
		httpTimeout: 30 * time.Second,
		clientInfo:  &mcp.Implementation{Name: "bodhi", Version: "0.1.0"},
	}
}

// ListTools connects to inst's server, lists its tools, and disconnects.
// Callers are expected to persist the result into McpInstance.ToolsCache.
func (c *MCPClient) ListTools(ctx context.Context, inst objs.McpInstance) ([]objs.McpToolDescriptor, error) {
	session, err := c.connect(ctx, inst)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tools: %v", objs.ErrUpstreamUnavailable, err)
	}

	out := make([]objs.McpToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, objs.McpToolDescriptor{Name: t.Name, Description: t.Description})
	}
	return filterTools(out, inst.ToolsFilter), nil
}

// CallTool connects to inst's server, invokes the named tool with args,
// and disconnects, returning a canonicalized ToolsetExecutionResponse
// regardless of whether the call succeeded.
func (c *MCPClient) CallTool(ctx context.Context, inst objs.McpInstance, toolName string, args map[string]any) objs.ToolsetExecutionResponse {
	session, err := c.connect(ctx, inst)
	if err != nil {
		msg := err.Error()
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		msg := fmt.Sprintf("%v: calling tool: %v", objs.ErrUpstreamUnavailable, err)
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	if result.IsError {
		msg := contentToText(result.Content)
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	return objs.ToolsetExecutionResponse{
		ToolName: toolName,
		Success:  true,
		Result:   map[string]any{"content": contentToText(result.Content)},
	}
}

func (c *MCPClient) connect(ctx context.Context, inst objs.McpInstance) (*mcp.ClientSession, error) {
	server, ok, err := c.servers.GetServer(ctx, inst.McpServerID)
	if err != nil {
		return nil, fmt.Errorf("resolving mcp server: %w", err)
	}
	if !ok || !server.Enabled {
		return nil, fmt.Errorf("%w: mcp server unavailable", objs.ErrUpstreamUnavailable)
	}

	httpClient := &http.Client{Timeout: c.httpTimeout}
	switch inst.AuthType {
	case objs.McpAuthHeader:
		token, err := c.credentials.HeaderCredential(ctx, inst)
		if err != nil {
			return nil, fmt.Errorf("resolving header credential: %w", err)
		}
		httpClient.Transport = &bearerTransport{token: token}
	case objs.McpAuthOAuth:
		token, err := c.credentials.OAuthAccessToken(ctx, inst)
		if err != nil {
			return nil, fmt.Errorf("resolving oauth token: %w", err)
		}
		httpClient.Transport = &bearerTransport{token: token}
	case objs.McpAuthPublic:
		// no auth
	}

	transport := &mcp.StreamableClientTransport{Endpoint: server.URL, HTTPClient: httpClient}
	client := mcp.NewClient(c.clientInfo, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %v", objs.ErrUpstreamUnavailable, err)
	}
	return session, nil
}

func filterTools(tools []objs.McpToolDescriptor, allow []string) []objs.McpToolDescriptor {
	if len(allow) == 0 {
		return tools
	}
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}
	out := make([]objs.McpToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if allowed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func contentToText(content []mcp.Content) string {
	var out string
	for _, c := range content {
		text, ok := c.(*mcp.TextContent)
		if !ok || text.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += text.Text
	}
	return out
}

// bearerTransport applies a static bearer token to every outgoing
// request, mirroring the teacher example's auth-wrapping RoundTripper.
type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}
