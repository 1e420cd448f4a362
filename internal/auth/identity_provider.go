// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"errors"
)

// IdentityProvider is the capability interface the auth middleware chain
// calls out to for everything that requires contacting the OAuth2
// identity provider: validating a bearer token's signature and claims,
// and exchanging a user-scoped token for a resource-scoped one on behalf
// of an external app. The composition root wires a concrete Keycloak-style
// client; tests wire a fake that returns canned claims.
type IdentityProvider interface {
	// ValidateBearer decodes and validates a JWT's signature and expiry,
	// returning its claims. It does not call out to the network beyond
	// whatever key-fetching the concrete implementation caches internally.
	// KeycloakProvider does not check the token's audience.
	ValidateBearer(ctx context.Context, token string) (*TokenClaims, error)

	// ExchangeToken exchanges a user-scoped token for one scoped to
	// requestedScope, on behalf of the given app client. Callers are
	// expected to wrap this with the single-flight token-exchange cache
	// in exchange_cache.go rather than call it directly per request.
	ExchangeToken(ctx context.Context, appClientID, originalToken, requestedScope string) (*ExchangedToken, error)

	// RegisterClient performs dynamic client registration against the
	// identity provider's bodhi-specific endpoint, returning the new
	// client's credentials.
	RegisterClient(ctx context.Context, name string) (clientID, clientSecret string, err error)

	// ExchangeAuthorizationCode completes the browser login flow's
	// authorization-code grant, trading the code the /app/login/callback
	// redirect carried for an access token.
	ExchangeAuthorizationCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*ExchangedToken, error)
}

// TokenClaims is the subset of a decoded bearer JWT's claims the auth
// chain needs: subject, the resource_access roles map, and any
// scope_user_*/scope_token_* scope claim.
type TokenClaims struct {
	Subject       string
	JTI           string
	ExpiresAtUnix int64
	ResourceRoles map[string][]string // client_id -> roles[]
	Scope         string
}

// ExchangedToken is the result of a successful token exchange.
type ExchangedToken struct {
	AccessToken   string
	ExpiresAtUnix int64
}

// ErrIdentityProviderUnreachable is wrapped by KeycloakProvider's errors
// when the identity provider cannot be reached or answers with a
// non-success status; ValidateBearer also wraps it around every token
// that fails validation. The auth chain does not tell it apart from other
// strategy errors: every one of them is answered with 401 Unauthorized.
var ErrIdentityProviderUnreachable = errors.New("identity provider unreachable")

// NopIdentityProvider is the default wired when no real identity provider
// is configured — every validation fails closed. Unlike the teacher's
// always-allow NopAuthProvider, bodhi's default must fail closed: an
// unconfigured IdP should never silently grant access to a multi-user
// deployment.
type NopIdentityProvider struct{}

func (NopIdentityProvider) ValidateBearer(context.Context, string) (*TokenClaims, error) {
	return nil, errors.New("no identity provider configured")
}

func (NopIdentityProvider) ExchangeToken(context.Context, string, string, string) (*ExchangedToken, error) {
	return nil, errors.New("no identity provider configured")
}

func (NopIdentityProvider) RegisterClient(context.Context, string) (string, string, error) {
	return "", "", errors.New("no identity provider configured")
}

func (NopIdentityProvider) ExchangeAuthorizationCode(context.Context, string, string, string, string) (*ExchangedToken, error) {
	return nil, errors.New("no identity provider configured")
}

var _ IdentityProvider = NopIdentityProvider{}
