package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

func handleListMCPServers(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		servers, err := deps.MCP.ListServers(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": servers})
	}
}

type createMCPServerBody struct {
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func handleCreateMCPServer(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createMCPServerBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		userID, _ := auth.GetAuthContext(c).UserID()
		now := time.Now()
		server := objs.McpServer{
			ID:          newULID(now),
			URL:         body.URL,
			Name:        body.Name,
			Description: body.Description,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
			CreatedBy:   userID,
		}
		if err := deps.MCP.PutServer(c.Request.Context(), server); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(201, server)
	}
}

func handleDeleteMCPServer(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.MCP.DeleteServer(c.Request.Context(), c.Param("id")); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(204)
	}
}
