package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

func handleListAccessRequests(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst, ok, err := deps.Apps.GetInstance(c.Request.Context())
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			c.JSON(200, gin.H{"data": []objs.AppAccessRequest{}})
			return
		}
		reqs, err := deps.Apps.ListAccessRequestsByApp(c.Request.Context(), inst.ClientID)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": reqs})
	}
}

type resolveAccessRequestBody struct {
	Status       string         `json:"status"`
	Approved     map[string]any `json:"approved"`
	ApprovedRole string         `json:"approved_role"`
}

// handleResolveAccessRequest moves a draft access request to its
// terminal status, recording the admin's approved payload/role.
func handleResolveAccessRequest(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body resolveAccessRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		req, ok, err := deps.Apps.GetAccessRequest(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			writeAPIError(c, objs.ErrNotFound)
			return
		}

		status := objs.AccessRequestStatus(body.Status)
		if err := req.Resolve(status, time.Now()); err != nil {
			writeAPIError(c, err)
			return
		}
		if status == objs.AccessRequestApproved {
			req.Approved = body.Approved
			if body.ApprovedRole != "" {
				role, err := objs.ParseResourceRole(body.ApprovedRole)
				if err != nil {
					writeAPIError(c, err)
					return
				}
				req.ApprovedRole = &role
			}
		}
		if err := deps.Apps.UpdateAccessRequest(c.Request.Context(), req); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, req)
	}
}
