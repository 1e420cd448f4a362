package server

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/hub"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// handleListModels implements GET /v1/models, listing every alias across
// all sources in OpenAI's {object: "list", data: [...]} envelope.
func handleListModels(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		aliases, err := deps.Catalog.ListAliases(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		data := make([]gin.H, 0, len(aliases))
		for _, a := range aliases {
			data = append(data, gin.H{
				"id":       a.AliasName(),
				"object":   "model",
				"owned_by": "bodhi",
			})
		}
		c.JSON(200, gin.H{"object": "list", "data": data})
	}
}

func handleListAliases(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		aliases, err := deps.Catalog.ListAliases(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": aliases})
	}
}

func handleCreateAlias(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body objs.UserAlias
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		created, err := deps.Catalog.CreateAlias(c.Request.Context(), body)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(201, created)
	}
}

func handleDeleteAlias(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Catalog.DeleteAlias(c.Request.Context(), c.Param("id")); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(204)
	}
}

func handleListLocalModels(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		hfHome := deps.Settings.GetString("BODHI_HF_HOME", "")
		files, err := hub.ListLocalModels(hfHome)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": files})
	}
}

// handleOllamaTags implements GET /api/tags, Ollama's model-list
// endpoint, re-shaping the same alias catalog into Ollama's schema.
func handleOllamaTags(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		aliases, err := deps.Catalog.ListAliases(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		models := make([]gin.H, 0, len(aliases))
		for _, a := range aliases {
			models = append(models, gin.H{
				"name":        a.AliasName(),
				"model":       a.AliasName(),
				"modified_at": time.Now().Format(time.RFC3339),
			})
		}
		c.JSON(200, gin.H{"models": models})
	}
}

func handleOllamaShow(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		alias, ok, err := deps.Catalog.FindAlias(c.Request.Context(), body.Name)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			writeAPIError(c, objs.ErrNotFound)
			return
		}
		c.JSON(200, gin.H{"modelfile": alias.AliasName(), "details": gin.H{"format": "gguf"}})
	}
}

func handleOllamaChat(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		model, _ := body["model"].(string)
		alias, ok, err := deps.Catalog.FindAlias(c.Request.Context(), model)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			writeAPIError(c, objs.ErrNotFound)
			return
		}
		if err := ensureModelLoaded(c, deps, alias); err != nil {
			writeAPIError(c, err)
			return
		}
		// Ollama's chat shape maps onto llama-server's OpenAI-compatible
		// endpoint; messages/model/stream fields already line up.
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if stream, _ := body["stream"].(bool); stream {
			streamChatCompletion(c, deps, bodyJSON)
			return
		}
		resp, err := deps.Llama.Forward(c.Request.Context(), "/v1/chat/completions", bytes.NewReader(bodyJSON), c.Request.Header)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		defer resp.Body.Close()
		c.Status(resp.StatusCode)
		io.Copy(c.Writer, resp.Body)
	}
}
