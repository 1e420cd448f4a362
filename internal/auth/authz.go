// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/apierror"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// RouteTier is a route's declared minimum access level. Each tier above
// Anonymous maps onto one rung of one of the three AuthContext lattices;
// SessionOnly additionally rejects any non-Session context outright,
// regardless of role.
type RouteTier int

const (
	TierAnonymous RouteTier = iota
	TierUser
	TierPowerUser
	TierManager
	TierAdmin
	TierSessionOnly
)

// RequireTier returns middleware that aborts with 401/403 unless the
// request's AuthContext (set earlier in the chain by Chain) clears tier.
// Admin and session-only routes accept session auth only: any other
// context is rejected with 403 before its role is looked at. Below those
// tiers an ApiToken is floored on the TokenScope lattice (so it clears
// User and PowerUser but never Manager) and an ExternalApp on the
// UserScope lattice.
func RequireTier(tier RouteTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := GetAuthContext(c)
		if tier == TierAnonymous {
			c.Next()
			return
		}
		if !ctx.IsAuthenticated() {
			abort(c, objs.ErrUnauthorized, "authentication required")
			return
		}
		if tier == TierSessionOnly {
			if ctx.Kind() != objs.AuthKindSession {
				abort(c, objs.ErrForbidden, "this route accepts session authentication only")
				return
			}
			c.Next()
			return
		}
		if tier == TierAdmin && ctx.Kind() != objs.AuthKindSession {
			abort(c, objs.ErrForbidden, "this route accepts session authentication only")
			return
		}
		if !clearsTier(ctx, tier) {
			abort(c, objs.ErrForbidden, "insufficient role for this route")
			return
		}
		c.Next()
	}
}

// clearsTier evaluates tier against whichever lattice ctx's concrete
// variant carries. A context that carries no role on the relevant lattice
// (Anonymous, or a TokenScope/UserScope context facing a Session-lattice
// tier) never clears it.
func clearsTier(ctx objs.AuthContext, tier RouteTier) bool {
	if role, ok := objs.EffectiveResourceRole(ctx); ok {
		return role.HasAccessTo(resourceRoleFloor(tier))
	}
	if scope, ok := objs.EffectiveTokenScope(ctx); ok {
		return scope.HasAccessTo(tokenScopeFloor(tier))
	}
	if scope, ok := objs.EffectiveUserScope(ctx); ok {
		return scope.HasAccessTo(userScopeFloor(tier))
	}
	return false
}

func resourceRoleFloor(tier RouteTier) objs.ResourceRole {
	switch tier {
	case TierPowerUser:
		return objs.ResourceRolePowerUser
	case TierManager:
		return objs.ResourceRoleManager
	case TierAdmin:
		return objs.ResourceRoleAdmin
	default:
		return objs.ResourceRoleUser
	}
}

// tokenScopeFloor maps a tier onto the two-rung TokenScope lattice.
// Manager and Admin have no TokenScope equivalent, so an ApiToken context
// never clears them — only a Session can.
func tokenScopeFloor(tier RouteTier) objs.TokenScope {
	switch tier {
	case TierPowerUser:
		return objs.TokenScopePowerUser
	case TierManager, TierAdmin:
		return objs.TokenScopePowerUser + 1 // unreachable rung: forces HasAccessTo to fail
	default:
		return objs.TokenScopeUser
	}
}

func userScopeFloor(tier RouteTier) objs.UserScope {
	switch tier {
	case TierPowerUser:
		return objs.UserScopePowerUser
	case TierManager:
		return objs.UserScopeManager
	case TierAdmin:
		return objs.UserScopeAdmin
	default:
		return objs.UserScopeUser
	}
}

func abort(c *gin.Context, sentinel error, message string) {
	status, body := apierror.FromError(sentinel)
	body.Error.Message = message
	c.AbortWithStatusJSON(status, body)
}
