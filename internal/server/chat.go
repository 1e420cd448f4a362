package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/apierror"
	"github.com/bodhi-ml/bodhi/internal/hub"
	"github.com/bodhi-ml/bodhi/internal/llamactx"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// chatRequestModel is the subset of an OpenAI chat-completion request
// body the handler needs to read before re-marshaling the (possibly
// alias-filled) whole back out to llama-server.
type chatRequestModel struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func handleChatCompletions(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeAPIError(c, fmt.Errorf("%w: reading request body", objs.ErrBadRequest))
			return
		}
		var req map[string]any
		if err := json.Unmarshal(raw, &req); err != nil {
			writeAPIError(c, fmt.Errorf("%w: invalid JSON body", objs.ErrBadRequest))
			return
		}
		var meta chatRequestModel
		_ = json.Unmarshal(raw, &meta)

		alias, ok, err := deps.Catalog.FindAlias(c.Request.Context(), meta.Model)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			writeAPIError(c, fmt.Errorf("%w: model %q not found", objs.ErrNotFound, meta.Model))
			return
		}

		if user, ok := alias.(objs.UserAlias); ok {
			user.RequestParams.ApplyFillIfAbsent(req)
		}

		if err := ensureModelLoaded(c, deps, alias); err != nil {
			writeAPIError(c, err)
			return
		}

		filled, err := json.Marshal(req)
		if err != nil {
			writeAPIError(c, err)
			return
		}

		if meta.Stream {
			streamChatCompletion(c, deps, filled)
			return
		}

		resp, err := deps.Llama.Forward(c.Request.Context(), "/v1/chat/completions", bytes.NewReader(filled), c.Request.Header)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		defer resp.Body.Close()
		c.Status(resp.StatusCode)
		io.Copy(c.Writer, resp.Body)
	}
}

// ensureModelLoaded resolves alias to an on-disk model file and reloads
// the shared llama-server if it isn't already serving that path.
func ensureModelLoaded(c *gin.Context, deps Deps, alias objs.Alias) error {
	var repo objs.Repo
	var filename string
	var snapshot *string

	switch a := alias.(type) {
	case objs.UserAlias:
		repo, filename = a.Repo, a.Filename
		if a.Snapshot != "" {
			snap := a.Snapshot
			snapshot = &snap
		}
	case objs.ModelAlias:
		repo, filename = a.Repo, a.Filename
		snap := a.Snapshot
		snapshot = &snap
	default:
		return fmt.Errorf("%w: alias %q is not a local model", objs.ErrBadRequest, alias.AliasName())
	}

	hfHome := deps.Settings.GetString("BODHI_HF_HOME", "")
	hf, found, err := hub.FindLocalFile(hfHome, repo, filename, snapshot)
	if err != nil {
		return fmt.Errorf("resolving local model file: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: model file not found on disk", objs.ErrNotFound)
	}

	return deps.Llama.EnsureLoaded(c.Request.Context(), llamactx.ServerArgs{ModelPath: hf.AbsPath()})
}

// streamChatCompletion proxies llama-server's own SSE chunks straight
// through to the client: bodhi re-frames nothing here since llama-server
// already emits OpenAI-shaped "data: {...}\n\n" deltas terminated by
// "data: [DONE]\n\n".
func streamChatCompletion(c *gin.Context, deps Deps, body []byte) {
	resp, err := deps.Llama.Forward(c.Request.Context(), "/v1/chat/completions", bytes.NewReader(body), c.Request.Header)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	defer resp.Body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(resp.StatusCode)

	deps.Metrics.ActiveStreams.Inc()
	defer deps.Metrics.ActiveStreams.Dec()

	flusher, ok := c.Writer.(http.Flusher)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.Writer.Write(line)
			if ok {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		default:
		}
	}
}

func writeAPIError(c *gin.Context, err error) {
	status, body := apierror.FromError(err)
	c.AbortWithStatusJSON(status, body)
}
