package toolorch

import (
	"context"
	"testing"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

type fakeToolsetStore struct {
	toolsets []objs.Toolset
	appCfg   map[objs.ToolsetType]objs.AppToolsetConfig
}

func (f fakeToolsetStore) ListToolsetsByOwner(ctx context.Context, ownerUserID string) ([]objs.Toolset, error) {
	var out []objs.Toolset
	for _, t := range f.toolsets {
		if t.OwnerUserID == ownerUserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f fakeToolsetStore) GetAppToolsetConfig(ctx context.Context, t objs.ToolsetType) (objs.AppToolsetConfig, error) {
	if cfg, ok := f.appCfg[t]; ok {
		return cfg, nil
	}
	return objs.AppToolsetConfig{Type: t, Enabled: true}, nil
}

type fakeDecryptor struct{ plaintext string }

func (f fakeDecryptor) Decrypt(string) (string, error) { return f.plaintext, nil }

func TestExecuteBuiltinToolsetRejectsWhenAppConfigDisabled(t *testing.T) {
	store := fakeToolsetStore{
		toolsets: []objs.Toolset{{OwnerUserID: "u1", Type: objs.ToolsetTypeExaSearch, Enabled: true, EncryptedAPIKey: "enc"}},
		appCfg:   map[objs.ToolsetType]objs.AppToolsetConfig{objs.ToolsetTypeExaSearch: {Type: objs.ToolsetTypeExaSearch, Enabled: false}},
	}
	orch := NewOrchestrator(nil, store, nil, NewExaToolset(nil), nil, fakeDecryptor{})

	resp := orch.ExecuteBuiltinToolset(context.Background(), "u1", objs.ToolsetTypeExaSearch, map[string]any{"query": "go"})
	if resp.Success {
		t.Fatal("expected execution to fail when the app-level toolset config is disabled")
	}
}

func TestExecuteBuiltinToolsetRejectsWhenUserHasNoToolset(t *testing.T) {
	store := fakeToolsetStore{appCfg: map[objs.ToolsetType]objs.AppToolsetConfig{}}
	orch := NewOrchestrator(nil, store, nil, NewExaToolset(nil), nil, fakeDecryptor{})

	resp := orch.ExecuteBuiltinToolset(context.Background(), "u1", objs.ToolsetTypeExaSearch, nil)
	if resp.Success {
		t.Fatal("expected execution to fail when the owner has no enabled toolset row")
	}
}

type fakeGrantFetcher struct {
	grant AppToolsetGrant
	calls int
}

func (f *fakeGrantFetcher) FetchGrant(ctx context.Context, appClientID string, scopeIDs []string) (AppToolsetGrant, error) {
	f.calls++
	return f.grant, nil
}

func TestAppToolsetCacheRefetchesOnlyWhenExpired(t *testing.T) {
	fetcher := &fakeGrantFetcher{grant: AppToolsetGrant{ToolsetIDs: []string{"exa"}}}
	cache := NewAppToolsetCache(fetcher)
	fixedNow := time.Now()
	cache.now = func() time.Time { return fixedNow }

	ext := objs.ExternalApp{AppClientID: "app-1"}
	if _, err := cache.Grant(context.Background(), ext); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Grant(context.Background(), ext); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single fetch while cache is fresh, got %d", fetcher.calls)
	}

	cache.now = func() time.Time { return fixedNow.Add(10 * time.Minute) }
	if _, err := cache.Grant(context.Background(), ext); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected a refetch once the ttl elapsed, got %d", fetcher.calls)
	}
}

func TestAuthorizeExternalAppToolUsesGrant(t *testing.T) {
	fetcher := &fakeGrantFetcher{grant: AppToolsetGrant{ToolsetIDs: []string{"exa"}}}
	cache := NewAppToolsetCache(fetcher)
	orch := NewOrchestrator(nil, nil, nil, nil, cache, nil)

	ok, err := orch.AuthorizeExternalAppTool(context.Background(), objs.ExternalApp{AppClientID: "app-1"}, "exa")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected exa to be approved")
	}

	ok, err = orch.AuthorizeExternalAppTool(context.Background(), objs.ExternalApp{AppClientID: "app-1"}, "other")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected unapproved toolset to be rejected")
	}
}
