package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// pullUpgrader upgrades the pull-status tail connection. Origin checking
// is left to the auth chain that already ran ahead of this route.
var pullUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type pullRequestBody struct {
	Repo     string `json:"repo"`
	Filename string `json:"filename"`
}

// handlePullModel enqueues a download for (repo, filename), returning
// the existing non-terminal row if one already covers the pair.
func handlePullModel(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body pullRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		repo, err := objs.ParseRepo(body.Repo)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		req, err := deps.Queue.Enqueue(c.Request.Context(), repo, body.Filename)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		deps.Metrics.DownloadsInFlight.Set(float64(1))
		c.JSON(202, req)
	}
}

func handlePullStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok, err := deps.Queue.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		if !ok {
			writeAPIError(c, objs.ErrNotFound)
			return
		}
		c.JSON(200, req)
	}
}

// handlePullProgressWS tails a single download's progress, pushing the
// current row every tick until the download reaches a terminal state or
// the client disconnects.
func handlePullProgressWS(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ws, err := pullUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
				req, ok, err := deps.Queue.Get(c.Request.Context(), id)
				if err != nil || !ok {
					return
				}
				if werr := ws.WriteJSON(req); werr != nil {
					return
				}
				if req.Status.IsTerminal() {
					return
				}
			}
		}
	}
}
