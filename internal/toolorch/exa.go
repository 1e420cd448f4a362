package toolorch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

const exaSearchURL = "https://api.exa.ai/search"

// ExaToolset executes bodhi's one built-in toolset: web search via Exa.
// The API key is decrypted in memory for the duration of the call and
// never persisted in cleartext.
type ExaToolset struct {
	client *http.Client
}

// NewExaToolset constructs an ExaToolset using client, or http.DefaultClient
// if nil.
func NewExaToolset(client *http.Client) *ExaToolset {
	if client == nil {
		client = http.DefaultClient
	}
	return &ExaToolset{client: client}
}

// Search calls Exa's /search endpoint with apiKey and returns a
// canonicalized ToolsetExecutionResponse.
func (e *ExaToolset) Search(ctx context.Context, apiKey, query string, numResults int) objs.ToolsetExecutionResponse {
	const toolName = "exa_search"
	if numResults <= 0 {
		numResults = 5
	}
	payload, err := json.Marshal(map[string]any{
		"query":      query,
		"numResults": numResults,
	})
	if err != nil {
		msg := err.Error()
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exaSearchURL, bytes.NewReader(payload))
	if err != nil {
		msg := err.Error()
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		msg := fmt.Sprintf("%v: %v", objs.ErrUpstreamUnavailable, err)
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("%v: exa returned status %d", objs.ErrUpstreamUnavailable, resp.StatusCode)
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		msg := err.Error()
		return objs.ToolsetExecutionResponse{ToolName: toolName, Success: false, Error: &msg}
	}
	return objs.ToolsetExecutionResponse{ToolName: toolName, Success: true, Result: body}
}
