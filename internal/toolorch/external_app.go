package toolorch

import (
	"context"
	"sync"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// AppToolsetGrant is the identity provider's answer to "what toolsets and
// scopes is this external app approved for", cached locally so every tool
// call doesn't round-trip to the identity provider.
type AppToolsetGrant struct {
	ToolsetIDs []string
	ScopeIDs   []string
	FetchedAt  time.Time
}

// GrantFetcher re-requests an app's approved toolsets from the identity
// provider when the local cache is missing or expired.
type GrantFetcher interface {
	FetchGrant(ctx context.Context, appClientID string, scopeIDs []string) (AppToolsetGrant, error)
}

// AppToolsetCache holds the last-fetched grant per app client, refreshing
// through fetcher once the cached entry is older than ttl.
type AppToolsetCache struct {
	fetcher GrantFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]AppToolsetGrant
}

// NewAppToolsetCache constructs a cache with a 5-minute default TTL.
func NewAppToolsetCache(fetcher GrantFetcher) *AppToolsetCache {
	return &AppToolsetCache{
		fetcher: fetcher,
		ttl:     5 * time.Minute,
		now:     time.Now,
		entries: make(map[string]AppToolsetGrant),
	}
}

// Grant returns the approved-toolset grant for ext, fetching fresh from
// the identity provider if the cached entry is missing or stale.
func (c *AppToolsetCache) Grant(ctx context.Context, ext objs.ExternalApp) (AppToolsetGrant, error) {
	c.mu.Lock()
	cached, ok := c.entries[ext.AppClientID]
	c.mu.Unlock()

	if ok && c.now().Sub(cached.FetchedAt) < c.ttl {
		return cached, nil
	}

	grant, err := c.fetcher.FetchGrant(ctx, ext.AppClientID, nil)
	if err != nil {
		return AppToolsetGrant{}, err
	}
	grant.FetchedAt = c.now()

	c.mu.Lock()
	c.entries[ext.AppClientID] = grant
	c.mu.Unlock()
	return grant, nil
}

// Invalidate drops any cached grant for appClientID, forcing the next
// Grant call to re-fetch.
func (c *AppToolsetCache) Invalidate(appClientID string) {
	c.mu.Lock()
	delete(c.entries, appClientID)
	c.mu.Unlock()
}

// ApprovedForToolset reports whether grant permits execution of
// toolsetID.
func (g AppToolsetGrant) ApprovedForToolset(toolsetID string) bool {
	for _, id := range g.ToolsetIDs {
		if id == toolsetID {
			return true
		}
	}
	return false
}
