// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeycloakProvider is the concrete IdentityProvider implementation that
// talks to a Keycloak-style OAuth2 realm: JWKS-backed bearer validation,
// the standard token-exchange grant, and bodhi's own dynamic client
// registration endpoint ("custom /realms/{realm}/bodhi/clients").
type KeycloakProvider struct {
	baseURL string // e.g. https://id.example.com
	realm   string
	client  *http.Client

	jwksMu      sync.Mutex
	jwksKeys    map[string]*rsa.PublicKey
	jwksFetched time.Time
	jwksTTL     time.Duration
}

// NewKeycloakProvider constructs a provider against baseURL's realm.
// client defaults to http.DefaultClient if nil.
func NewKeycloakProvider(baseURL, realm string, client *http.Client) *KeycloakProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeycloakProvider{
		baseURL:  baseURL,
		realm:    realm,
		client:   client,
		jwksKeys: map[string]*rsa.PublicKey{},
		jwksTTL:  10 * time.Minute,
	}
}

// keycloakClaims is the subset of a Keycloak access token's claims bodhi
// reads: standard registered claims plus the realm-specific
// resource_access roles map and bodhi's scope_* custom claim.
type keycloakClaims struct {
	jwt.RegisteredClaims
	Scope          string                        `json:"scope"`
	ResourceAccess map[string]keycloakResourceRoles `json:"resource_access"`
}

type keycloakResourceRoles struct {
	Roles []string `json:"roles"`
}

// ValidateBearer verifies token's signature against the realm's JWKS and
// the time-based registered claims (expiry, not-before), returning the
// subset of claims the auth chain needs. Issuer and audience are not
// checked.
func (k *KeycloakProvider) ValidateBearer(ctx context.Context, token string) (*TokenClaims, error) {
	var claims keycloakClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := k.publicKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: validating bearer token: %v", ErrIdentityProviderUnreachable, err)
	}

	roles := map[string][]string{}
	for clientID, ra := range claims.ResourceAccess {
		roles[clientID] = ra.Roles
	}
	var expires int64
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Unix()
	}
	return &TokenClaims{
		Subject:       claims.Subject,
		JTI:           claims.ID,
		ExpiresAtUnix: expires,
		ResourceRoles: roles,
		Scope:         claims.Scope,
	}, nil
}

// ExchangeToken performs the standard OAuth2 token-exchange grant
// (RFC 8693) against the realm's token endpoint.
func (k *KeycloakProvider) ExchangeToken(ctx context.Context, appClientID, originalToken, requestedScope string) (*ExchangedToken, error) {
	form := url.Values{
		"grant_type":           {"urn:ietf:params:oauth:grant-type:token-exchange"},
		"client_id":            {appClientID},
		"subject_token":        {originalToken},
		"subject_token_type":   {"urn:ietf:params:oauth:token-type:access_token"},
		"requested_token_type": {"urn:ietf:params:oauth:token-type:access_token"},
		"scope":                {requestedScope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.tokenURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Body = newFormBody(form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging token: %v", ErrIdentityProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token exchange returned status %d", ErrIdentityProviderUnreachable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding token exchange response: %w", err)
	}
	return &ExchangedToken{
		AccessToken:   body.AccessToken,
		ExpiresAtUnix: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second).Unix(),
	}, nil
}

// ExchangeAuthorizationCode trades an authorization code from the
// browser login redirect for an access token, per the standard OAuth2
// authorization_code grant.
func (k *KeycloakProvider) ExchangeAuthorizationCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*ExchangedToken, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.tokenURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Body = newFormBody(form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging authorization code: %v", ErrIdentityProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: authorization code exchange returned status %d", ErrIdentityProviderUnreachable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding authorization code exchange response: %w", err)
	}
	return &ExchangedToken{
		AccessToken:   body.AccessToken,
		ExpiresAtUnix: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second).Unix(),
	}, nil
}

// RegisterClient performs dynamic client registration against bodhi's
// custom realm endpoint, returning the new client's credentials.
func (k *KeycloakProvider) RegisterClient(ctx context.Context, name string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.clientsURL(), jsonBody(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: registering client: %v", ErrIdentityProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("%w: client registration returned status %d", ErrIdentityProviderUnreachable, resp.StatusCode)
	}

	var body struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decoding client registration response: %w", err)
	}
	return body.ClientID, body.ClientSecret, nil
}

func (k *KeycloakProvider) realmURL() string {
	return fmt.Sprintf("%s/realms/%s", k.baseURL, k.realm)
}

func (k *KeycloakProvider) tokenURL() string {
	return k.realmURL() + "/protocol/openid-connect/token"
}

func (k *KeycloakProvider) authorizeURL() string {
	return k.realmURL() + "/protocol/openid-connect/authorize"
}

func (k *KeycloakProvider) clientsURL() string {
	return k.realmURL() + "/bodhi/clients"
}

// AuthorizeURL builds the authorization-code redirect URL for the
// /app/login handler.
func (k *KeycloakProvider) AuthorizeURL(clientID, redirectURI, state string) string {
	v := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
	}
	return k.authorizeURL() + "?" + v.Encode()
}

// jwksKey mirrors one entry of a JWKS document's "keys" array.
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// publicKey resolves kid against the realm's JWKS, refetching the
// document if the cache is empty, stale, or missing that kid.
func (k *KeycloakProvider) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.jwksMu.Lock()
	defer k.jwksMu.Unlock()

	if key, ok := k.jwksKeys[kid]; ok && time.Since(k.jwksFetched) < k.jwksTTL {
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.realmURL()+"/protocol/openid-connect/certs", nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwksKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding jwks: %w", err)
	}

	k.jwksKeys = map[string]*rsa.PublicKey{}
	for _, jk := range doc.Keys {
		if jk.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(jk.N, jk.E)
		if err != nil {
			continue
		}
		k.jwksKeys[jk.Kid] = pub
	}
	k.jwksFetched = time.Now()

	key, ok := k.jwksKeys[kid]
	if !ok {
		return nil, fmt.Errorf("jwks: unknown key id %q", kid)
	}
	return key, nil
}

func rsaPublicKeyFromJWK(nEncoded, eEncoded string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nEncoded)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eEncoded)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

var _ IdentityProvider = (*KeycloakProvider)(nil)
