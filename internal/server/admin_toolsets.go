package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

func handleListToolsets(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetAuthContext(c).UserID()
		toolsets, err := deps.MCP.ListToolsetsByOwner(c.Request.Context(), userID)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": toolsets})
	}
}

func handleListToolsetTypes(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		types := []objs.ToolsetType{objs.ToolsetTypeExaSearch}
		out := make([]gin.H, 0, len(types))
		for _, t := range types {
			cfg, err := deps.MCP.GetAppToolsetConfig(c.Request.Context(), t)
			if err != nil {
				writeAPIError(c, err)
				return
			}
			out = append(out, gin.H{"type": t, "enabled": cfg.Enabled})
		}
		c.JSON(200, gin.H{"data": out})
	}
}

type upsertToolsetBody struct {
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// handleUpsertToolset creates or updates the caller's own toolset row
// for the given type, encrypting the supplied API key at rest.
func handleUpsertToolset(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body upsertToolsetBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		toolsetType := objs.ToolsetType(c.Param("type"))
		userID, _ := auth.GetAuthContext(c).UserID()

		existing, err := deps.MCP.ListToolsetsByOwner(c.Request.Context(), userID)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		id := newULID(time.Now())
		createdAt := time.Now()
		for _, ts := range existing {
			if ts.Type == toolsetType {
				id = ts.ID
				createdAt = ts.CreatedAt
				break
			}
		}

		encrypted, err := deps.Encryptor.Encrypt(body.APIKey)
		if err != nil {
			writeAPIError(c, err)
			return
		}

		ts := objs.Toolset{
			ID:              id,
			OwnerUserID:     userID,
			Type:            toolsetType,
			Enabled:         body.Enabled,
			EncryptedAPIKey: encrypted,
			CreatedAt:       createdAt,
			UpdatedAt:       time.Now(),
		}
		if err := deps.MCP.PutToolset(c.Request.Context(), ts); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, ts)
	}
}
