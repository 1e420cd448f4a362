package server

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/objs"
	"github.com/bodhi-ml/bodhi/internal/secrets"
)

// newULID mints a crypto/rand-seeded ULID, matching the identity scheme
// internal/catalog and internal/downloadqueue already use for new rows.
func newULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return fmt.Sprintf("%d", t.UnixNano())
	}
	return id.String()
}

func handleListTokens(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetAuthContext(c).UserID()
		tokens, err := deps.Tokens.ListByUser(c.Request.Context(), userID)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(200, gin.H{"data": tokens})
	}
}

type createTokenBody struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// handleCreateToken mints a fresh API token, returning the plaintext
// exactly once; only its bcrypt hash is persisted.
func handleCreateToken(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createTokenBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		if _, err := objs.ParseTokenScope(body.Scope); err != nil {
			writeAPIError(c, err)
			return
		}
		userID, _ := auth.GetAuthContext(c).UserID()

		plaintext, err := secrets.GenerateAPIToken()
		if err != nil {
			writeAPIError(c, err)
			return
		}
		hash, err := secrets.HashToken(plaintext)
		if err != nil {
			writeAPIError(c, err)
			return
		}

		tok := db.APIToken{
			ID:         newULID(time.Now()),
			Name:       body.Name,
			UserID:     userID,
			TokenHash:  hash,
			TokenScope: body.Scope,
			Status:     db.TokenStatusActive,
			CreatedAt:  time.Now(),
		}
		if err := deps.Tokens.Create(c.Request.Context(), tok); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(201, gin.H{"token": plaintext, "id": tok.ID})
	}
}

type updateTokenStatusBody struct {
	Status string `json:"status"`
}

func handleUpdateTokenStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body updateTokenStatusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		status := db.TokenStatus(body.Status)
		if status != db.TokenStatusActive && status != db.TokenStatusInactive {
			writeAPIError(c, objs.ErrBadRequest)
			return
		}
		if err := deps.Tokens.SetStatus(c.Request.Context(), c.Param("id"), status); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(204)
	}
}
