// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ttlEntry is one cached exchanged token, expiring at expiresAt.
type ttlEntry struct {
	token     *ExchangedToken
	expiresAt time.Time
}

// ttlMap is a small expiring map guarded by a mutex. No third-party TTL
// cache appears anywhere in the corpus (see DESIGN.md); this primitive
// is small and security-sensitive enough that hand-rolling it beats
// adopting an unfamiliar dependency for it.
type ttlMap struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
}

func newTTLMap() *ttlMap {
	return &ttlMap{entries: make(map[string]ttlEntry)}
}

func (m *ttlMap) get(key string, now time.Time) (*ExchangedToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return nil, false
	}
	return e.token, true
}

func (m *ttlMap) put(key string, token *ExchangedToken, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = ttlEntry{token: token, expiresAt: expiresAt}
}

// ExchangeCache coalesces concurrent token-exchange requests for the same
// (jti, scope) pair through singleflight and serves cached results until
// the exchanged token's own expiry, avoiding a network round trip to the
// identity provider on every proxied request.
type ExchangeCache struct {
	idp   IdentityProvider
	group singleflight.Group
	cache *ttlMap
	now   func() time.Time
}

// NewExchangeCache wraps idp with a single-flight-coalesced, TTL-cached
// token exchange.
func NewExchangeCache(idp IdentityProvider) *ExchangeCache {
	return &ExchangeCache{idp: idp, cache: newTTLMap(), now: time.Now}
}

// Exchange returns a cached exchanged token for (jti, scope) if one is
// still valid, otherwise performs exactly one exchange call per key even
// under concurrent callers, and caches the result.
func (c *ExchangeCache) Exchange(ctx context.Context, appClientID, jti, originalToken, requestedScope string) (*ExchangedToken, error) {
	key := fmt.Sprintf("%s|%s", jti, requestedScope)
	now := c.now()
	if tok, ok := c.cache.get(key, now); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if tok, ok := c.cache.get(key, c.now()); ok {
			return tok, nil
		}
		tok, err := c.idp.ExchangeToken(ctx, appClientID, originalToken, requestedScope)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, tok, time.Unix(tok.ExpiresAtUnix, 0))
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ExchangedToken), nil
}
