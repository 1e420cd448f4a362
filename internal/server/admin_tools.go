package server

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// executeToolsetBody names which built-in toolset to run and its
// arguments; MCP tool execution goes through /mcps/instances/:id/execute instead,
// since an MCP call additionally names an instance and a tool within it.
type executeToolsetBody struct {
	Type objs.ToolsetType `json:"type"`
	Args map[string]any   `json:"args"`
}

// handleExecuteToolset runs a built-in toolset call (currently Exa
// search) on behalf of the caller, outside the chat-completion request
// cycle: bodhi hands llama-server's function-calling grammar the tool
// definitions and lets the model decide when to call one, but the actual
// execution of a named tool is this endpoint, which the client calls
// once it has the model's requested tool_call arguments in hand.
func handleExecuteToolset(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body executeToolsetBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		userID, _ := auth.GetAuthContext(c).UserID()
		result := deps.Tools.ExecuteBuiltinToolset(c.Request.Context(), userID, body.Type, body.Args)
		c.JSON(200, result)
	}
}

type executeMCPToolBody struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// handleExecuteMCPTool runs toolName against the caller's own MCP
// instance :id.
func handleExecuteMCPTool(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body executeMCPToolBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		userID, _ := auth.GetAuthContext(c).UserID()
		instances, err := deps.MCP.ListInstancesByOwner(c.Request.Context(), userID)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		var inst *objs.McpInstance
		for i := range instances {
			if instances[i].ID == c.Param("id") {
				inst = &instances[i]
				break
			}
		}
		if inst == nil {
			writeAPIError(c, objs.ErrNotFound)
			return
		}
		result := deps.Tools.ExecuteMCPTool(c.Request.Context(), *inst, body.ToolName, body.Args)
		c.JSON(200, result)
	}
}
