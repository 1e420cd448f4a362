// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/objs"
	"github.com/bodhi-ml/bodhi/internal/secrets"
)

// errNotApplicable signals that a strategy found no credential of its
// kind on the request; the chain moves on to the next strategy. Any
// other error means a credential of that kind was present but invalid,
// and the chain stops there.
var errNotApplicable = errors.New("auth: strategy not applicable")

// strategy inspects c and returns the AuthContext it resolves to, or
// errNotApplicable if this request carries no credential of its kind.
type strategy func(c *gin.Context) (objs.AuthContext, error)

const sessionCookieName = "bodhi_session"

// apiTokenStrategy matches `Authorization: Bearer bodhiapp_*`, looks the
// token up by listing and bcrypt-comparing (hashes aren't queryable by
// plaintext), and requires TokenStatusActive.
func apiTokenStrategy(tokens *db.TokenStore) strategy {
	return func(c *gin.Context) (objs.AuthContext, error) {
		token := extractBearerToken(c)
		if !strings.HasPrefix(token, "bodhiapp_") {
			return nil, errNotApplicable
		}
		candidates, err := tokens.ListAll(c.Request.Context())
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			if !secrets.VerifyToken(cand.TokenHash, token) {
				continue
			}
			if cand.Status != db.TokenStatusActive {
				return nil, errors.New("auth: api token is not active")
			}
			scope, err := objs.ParseTokenScope(cand.TokenScope)
			if err != nil {
				return nil, err
			}
			_ = tokens.TouchLastUsed(c.Request.Context(), cand.ID, time.Now())
			return objs.ApiToken{UserIDValue: cand.UserID, TokenScope: scope, AccessToken: token}, nil
		}
		return nil, errors.New("auth: unknown api token")
	}
}

// sessionStrategy matches a same-origin request carrying the session
// cookie, loads the session record, and decodes its stored access token
// through the identity provider to recover the resource_access roles.
func sessionStrategy(sessions *db.SessionStore, idp IdentityProvider) strategy {
	return func(c *gin.Context) (objs.AuthContext, error) {
		cookie, err := c.Cookie(sessionCookieName)
		if err != nil || cookie == "" {
			return nil, errNotApplicable
		}
		if !strings.EqualFold(c.GetHeader("Sec-Fetch-Site"), "same-origin") {
			return nil, errNotApplicable
		}
		sess, ok, err := sessions.Get(c.Request.Context(), cookie)
		if err != nil {
			return nil, err
		}
		if !ok || sess.Expired(time.Now()) {
			return nil, errors.New("auth: session expired or not found")
		}
		claims, err := idp.ValidateBearer(c.Request.Context(), sess.AccessToken)
		if err != nil {
			return nil, err
		}
		var role *objs.ResourceRole
		if r, found := objs.HighestResourceRole(claims.ResourceRoles[sess.OAuthClientID]); found {
			role = &r
		}
		return objs.Session{
			UserIDValue:  sess.UserID,
			ResourceRole: role,
			AccessToken:  sess.AccessToken,
		}, nil
	}
}

// oauthBearerStrategy matches any other bearer JWT, validating it
// directly against the identity provider. A scope_user_* claim is
// exchanged (through the coalescing cache) for a resource-scoped token
// and produces ExternalApp; a scope_token_* claim produces an
// equivalent ApiToken context.
func oauthBearerStrategy(idp IdentityProvider, exchange *ExchangeCache, appClientID string) strategy {
	return func(c *gin.Context) (objs.AuthContext, error) {
		token := extractBearerToken(c)
		if token == "" {
			return nil, errNotApplicable
		}
		claims, err := idp.ValidateBearer(c.Request.Context(), token)
		if err != nil {
			return nil, err
		}
		switch {
		case strings.HasPrefix(claims.Scope, "scope_user_"):
			userScope, err := objs.ParseUserScope(claims.Scope)
			if err != nil {
				return nil, err
			}
			exchanged, err := exchange.Exchange(c.Request.Context(), appClientID, claims.JTI, token, claims.Scope)
			if err != nil {
				return nil, err
			}
			return objs.ExternalApp{
				UserIDValue:    claims.Subject,
				UserScope:      userScope,
				ExchangedToken: exchanged.AccessToken,
				OriginalToken:  token,
				AppClientID:    appClientID,
			}, nil
		case strings.HasPrefix(claims.Scope, "scope_token_"):
			tokenScope, err := objs.ParseTokenScope(claims.Scope)
			if err != nil {
				return nil, err
			}
			return objs.ApiToken{UserIDValue: claims.Subject, TokenScope: tokenScope, AccessToken: token}, nil
		default:
			return nil, errors.New("auth: bearer token carries no recognized scope claim")
		}
	}
}

// anonymousStrategy always matches, producing the zero identity; it is
// always last in the chain.
func anonymousStrategy() strategy {
	return func(*gin.Context) (objs.AuthContext, error) {
		return objs.Anonymous{}, nil
	}
}
