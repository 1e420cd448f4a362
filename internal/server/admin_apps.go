package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// handleListApps returns bodhi's own app-instance registration — at most
// one row exists per installation, since bodhi is its own OAuth client.
func handleListApps(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst, ok, err := deps.Apps.GetInstance(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			c.JSON(200, gin.H{"data": []objs.AppInstance{}})
			return
		}
		c.JSON(200, gin.H{"data": []objs.AppInstance{inst}})
	}
}

type requestAppAccessBody struct {
	FlowType     string         `json:"flow_type"`
	RedirectURI  *string        `json:"redirect_uri"`
	Requested    map[string]any `json:"requested"`
}

// handleRequestAppAccess opens a new draft AppAccessRequest for the app
// identified by :id (bodhi's own client_id), awaiting admin resolution.
func handleRequestAppAccess(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body requestAppAccessBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		flow := objs.AccessRequestFlowType(body.FlowType)
		if flow != objs.FlowTypeRedirect && flow != objs.FlowTypePopup {
			writeAPIError(c, objs.ErrBadRequest)
			return
		}
		now := time.Now()
		req := objs.AppAccessRequest{
			ID:          newULID(now),
			AppClientID: c.Param("id"),
			FlowType:    flow,
			RedirectURI: body.RedirectURI,
			Status:      objs.AccessRequestDraft,
			Requested:   body.Requested,
			Approved:    map[string]any{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := deps.Apps.CreateAccessRequest(c.Request.Context(), req); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(201, req)
	}
}
