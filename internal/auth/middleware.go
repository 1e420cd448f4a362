// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/apierror"
	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// Chain builds the fixed-order auth middleware: API token, session
// cookie, OAuth bearer, then anonymous. The first strategy that doesn't
// report errNotApplicable decides the request's AuthContext; a strategy
// that matches a credential but rejects it (wrong scope, expired
// session, unknown token) aborts the request rather than falling
// through to a weaker strategy.
func Chain(tokens *db.TokenStore, sessions *db.SessionStore, idp IdentityProvider, exchange *ExchangeCache, appClientID string) gin.HandlerFunc {
	chain := []strategy{
		apiTokenStrategy(tokens),
		sessionStrategy(sessions, idp),
		oauthBearerStrategy(idp, exchange, appClientID),
		anonymousStrategy(),
	}
	return func(c *gin.Context) {
		for _, s := range chain {
			ctx, err := s(c)
			if errors.Is(err, errNotApplicable) {
				continue
			}
			if err != nil {
				status, body := apierror.FromError(objs.ErrUnauthorized)
				body.Error.Message = err.Error()
				c.AbortWithStatusJSON(status, body)
				return
			}
			SetAuthContext(c, ctx)
			attachIdentityHeaders(c, ctx)
			c.Next()
			return
		}
		// anonymousStrategy always matches, so this is unreachable in
		// practice; kept as a defensive fallback.
		SetAuthContext(c, objs.Anonymous{})
		c.Next()
	}
}

// attachIdentityHeaders exposes the resolved identity on well-known
// response headers for downstream proxies/clients, per the chain's
// contract.
func attachIdentityHeaders(c *gin.Context, ctx objs.AuthContext) {
	if token, ok := ctx.Token(); ok {
		c.Header("X-Bodhiapp-Token", token)
	}
	if userID, ok := ctx.UserID(); ok {
		c.Header("X-Bodhiapp-User-Id", userID)
	}
	if role, ok := objs.EffectiveResourceRole(ctx); ok {
		c.Header("X-Bodhiapp-Role", role.String())
	}
	if scope, ok := objs.EffectiveTokenScope(ctx); ok {
		c.Header("X-Bodhiapp-Scope", scope.String())
	}
	if scope, ok := objs.EffectiveUserScope(ctx); ok {
		c.Header("X-Bodhiapp-Scope", scope.String())
	}
}
