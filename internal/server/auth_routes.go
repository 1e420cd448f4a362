package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

const loginStateCookie = "bodhi_login_state"
const sessionCookie = "bodhi_session"

// handleLogin starts the browser login flow: mint a random CSRF state,
// stash it in a short-lived cookie, and redirect to the identity
// provider's authorization endpoint.
func handleLogin(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := randomState()
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.SetCookie(loginStateCookie, state, 600, "/", "", false, true)
		c.Redirect(http.StatusFound, deps.IdentityURL(deps.OAuthRedirectURI, state))
	}
}

// handleLoginCallback completes the authorization-code grant, validates
// the returned access token, and mints a session row + cookie.
func handleLoginCallback(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		expectedState, err := c.Cookie(loginStateCookie)
		if err != nil || expectedState == "" || expectedState != c.Query("state") {
			writeAPIError(c, objs.ErrUnauthorized)
			return
		}
		c.SetCookie(loginStateCookie, "", -1, "/", "", false, true)

		code := c.Query("code")
		if code == "" {
			writeAPIError(c, objs.ErrBadRequest)
			return
		}

		exchanged, err := deps.IdP.ExchangeAuthorizationCode(c.Request.Context(), deps.OAuthClientID, deps.OAuthClientSecret, code, deps.OAuthRedirectURI)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		claims, err := deps.IdP.ValidateBearer(c.Request.Context(), exchanged.AccessToken)
		if err != nil {
			writeAPIError(c, err)
			return
		}

		sessionID, err := randomState()
		if err != nil {
			writeAPIError(c, err)
			return
		}
		sess := db.Session{
			ID:            sessionID,
			UserID:        claims.Subject,
			AccessToken:   exchanged.AccessToken,
			OAuthClientID: deps.OAuthClientID,
			CreatedAt:     time.Now(),
			ExpiresAt:     time.Unix(exchanged.ExpiresAtUnix, 0),
		}
		if err := deps.Sessions.Put(c.Request.Context(), sess); err != nil {
			writeAPIError(c, err)
			return
		}

		c.SetCookie(sessionCookie, sessionID, int(time.Until(sess.ExpiresAt).Seconds()), "/", "", false, true)
		c.Redirect(http.StatusFound, "/")
	}
}

func handleLogout(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
			_ = deps.Sessions.Delete(c.Request.Context(), cookie)
		}
		c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
		c.Status(204)
	}
}

func handleCurrentUser(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.GetAuthContext(c)
		userID, _ := ctx.UserID()
		resp := gin.H{
			"user_id": userID,
			"kind":    ctx.Kind(),
		}
		if role, ok := objs.EffectiveResourceRole(ctx); ok {
			resp["role"] = role.String()
		}
		c.JSON(200, resp)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
