// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// authContextKey is the gin context key the middleware chain stores the
// resolved objs.AuthContext under, mirroring the teacher's typed-key
// pattern for collision safety.
const authContextKey = "bodhi_auth_context"

// SetAuthContext stores the resolved identity on c for downstream
// handlers. Called once per request by the middleware chain.
func SetAuthContext(c *gin.Context, ctx objs.AuthContext) {
	c.Set(authContextKey, ctx)
}

// GetAuthContext retrieves the identity a prior middleware stored, or
// objs.Anonymous{} if none was set — handlers never need a nil check.
func GetAuthContext(c *gin.Context) objs.AuthContext {
	if v, ok := c.Get(authContextKey); ok {
		if ctx, ok := v.(objs.AuthContext); ok {
			return ctx
		}
	}
	return objs.Anonymous{}
}

// extractBearerToken parses the `Authorization: Bearer <token>` header,
// case-insensitively, returning "" if absent or malformed.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) {
		return ""
	}
	if !equalFoldASCII(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
