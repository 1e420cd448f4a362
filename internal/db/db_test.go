package db

import (
	"context"
	"testing"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_CreatesAllTables(t *testing.T) {
	d := openTestDB(t)

	tables := []string{
		"settings", "user_aliases", "api_aliases", "api_tokens",
		"download_requests", "mcp_servers", "mcp_instances",
		"mcp_oauth_configs", "mcp_oauth_tokens", "toolsets",
		"app_toolset_configs", "app_instance", "access_requests",
	}
	for _, name := range tables {
		var found string
		err := d.Conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&found)
		if err != nil {
			t.Errorf("table %s not created: %v", name, err)
		}
	}
}

func TestSettingsStore_SetGetDelete(t *testing.T) {
	d := openTestDB(t)
	s := NewSettingsStore(d)

	if _, ok := s.Get("missing"); ok {
		t.Fatal("Get() on absent key should report false")
	}
	if err := s.Set("BODHI_PORT", "8080"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok := s.Get("BODHI_PORT")
	if !ok || v != "8080" {
		t.Fatalf("Get() = %q, %v, want 8080, true", v, ok)
	}
	if err := s.Set("BODHI_PORT", "8081"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, _ := s.Get("BODHI_PORT"); v != "8081" {
		t.Fatalf("Get() after overwrite = %q, want 8081", v)
	}
	if err := s.Delete("BODHI_PORT"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := s.Get("BODHI_PORT"); ok {
		t.Fatal("Get() after Delete should report false")
	}
}

func TestAliasStore_UserAliasRoundTrip(t *testing.T) {
	d := openTestDB(t)
	store := NewAliasStore(d)
	ctx := context.Background()

	repo, err := objs.ParseRepo("TheBloke/Llama-2-7B-GGUF")
	if err != nil {
		t.Fatalf("ParseRepo() error = %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alias := objs.UserAlias{
		ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Name: "llama2:chat", Repo: repo,
		Filename: "llama-2-7b.Q4_K_M.gguf", Snapshot: "main",
		ContextParams: []string{"--ctx-size", "4096"},
		CreatedAt:     now, UpdatedAt: now,
	}
	if err := store.PutUserAlias(ctx, alias); err != nil {
		t.Fatalf("PutUserAlias() error = %v", err)
	}

	got, ok, err := store.GetUserAlias(ctx, alias.ID)
	if err != nil || !ok {
		t.Fatalf("GetUserAlias() = %v, %v, %v", got, ok, err)
	}
	if got.Name != alias.Name || got.Filename != alias.Filename {
		t.Errorf("GetUserAlias() = %+v, want name/filename matching %+v", got, alias)
	}
	if len(got.ContextParams) != 2 || got.ContextParams[0] != "--ctx-size" || got.ContextParams[1] != "4096" {
		t.Errorf("ContextParams round-trip = %v", got.ContextParams)
	}

	list, err := store.ListUserAliases(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListUserAliases() = %v, %v", list, err)
	}

	if err := store.DeleteUserAlias(ctx, alias.ID); err != nil {
		t.Fatalf("DeleteUserAlias() error = %v", err)
	}
	if _, ok, _ := store.GetUserAlias(ctx, alias.ID); ok {
		t.Fatal("GetUserAlias() after delete should report false")
	}
}

func TestAliasStore_APIAliasRoundTrip(t *testing.T) {
	d := openTestDB(t)
	store := NewAliasStore(d)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prefix := "azure/"
	encKey := "ciphertext-blob"
	alias := objs.APIAlias{
		ID: "api-1", APIFormat: "openai", BaseURL: "https://api.openai.com/v1",
		Models: []string{"gpt-4o"}, Prefix: &prefix, EncryptedAPIKey: &encKey,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.PutAPIAlias(ctx, alias); err != nil {
		t.Fatalf("PutAPIAlias() error = %v", err)
	}

	list, err := store.ListAPIAliases(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAPIAliases() = %v, %v", list, err)
	}
	if list[0].Prefix == nil || *list[0].Prefix != prefix {
		t.Errorf("Prefix round-trip = %v", list[0].Prefix)
	}

	if err := store.DeleteAPIAlias(ctx, alias.ID); err != nil {
		t.Fatalf("DeleteAPIAlias() error = %v", err)
	}
	list, _ = store.ListAPIAliases(ctx)
	if len(list) != 0 {
		t.Errorf("ListAPIAliases() after delete = %v, want empty", list)
	}
}

func TestTokenStore_ListByUserAndTouch(t *testing.T) {
	d := openTestDB(t)
	store := NewTokenStore(d)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := APIToken{ID: "tok-1", Name: "ci", UserID: "user-1", TokenHash: "$2a$hash", TokenScope: "scope_token_user", CreatedAt: now}
	if err := store.Create(ctx, tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := store.ListByUser(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByUser() = %v, %v", list, err)
	}
	if list[0].LastUsedAt != nil {
		t.Error("LastUsedAt should be nil before first use")
	}

	used := now.Add(time.Hour)
	if err := store.TouchLastUsed(ctx, tok.ID, used); err != nil {
		t.Fatalf("TouchLastUsed() error = %v", err)
	}
	all, err := store.ListAll(ctx)
	if err != nil || len(all) != 1 || all[0].LastUsedAt == nil {
		t.Fatalf("ListAll() after touch = %+v, %v", all, err)
	}

	if err := store.Delete(ctx, tok.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if all, _ := store.ListAll(ctx); len(all) != 0 {
		t.Errorf("ListAll() after delete = %v, want empty", all)
	}
}

func TestDownloadStore_DedupAndTransition(t *testing.T) {
	d := openTestDB(t)
	store := NewDownloadStore(d)
	ctx := context.Background()

	repo, _ := objs.ParseRepo("TheBloke/Llama-2-7B-GGUF")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	req := objs.DownloadRequest{
		ID: "dl-1", Repo: repo, Filename: "llama-2-7b.Q4_K_M.gguf",
		Status: objs.DownloadPending, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, found, err := store.FindNonTerminal(ctx, repo, req.Filename)
	if err != nil || !found {
		t.Fatalf("FindNonTerminal() = %v, %v, want found", found, err)
	}

	pending, err := store.ListPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPending() = %v, %v", pending, err)
	}

	if err := req.Transition(objs.DownloadInProgress, now.Add(time.Minute)); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := store.Update(ctx, req); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := req.Transition(objs.DownloadCompleted, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Transition() to completed error = %v", err)
	}
	if err := store.Update(ctx, req); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	_, found, err = store.FindNonTerminal(ctx, repo, req.Filename)
	if err != nil || found {
		t.Fatalf("FindNonTerminal() after completion = %v, %v, want not found", found, err)
	}

	got, ok, err := store.Get(ctx, req.ID)
	if err != nil || !ok || got.Status != objs.DownloadCompleted {
		t.Fatalf("Get() = %+v, %v, %v", got, ok, err)
	}
}

func TestMcpStore_ServerInstanceOAuthRoundTrip(t *testing.T) {
	d := openTestDB(t)
	store := NewMcpStore(d)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := objs.McpServer{ID: "srv-1", URL: "https://mcp.example.com", Name: "example", Enabled: true, CreatedAt: now, UpdatedAt: now, CreatedBy: "admin"}
	if err := store.PutServer(ctx, srv); err != nil {
		t.Fatalf("PutServer() error = %v", err)
	}

	inst := objs.McpInstance{
		ID: "inst-1", OwnerUserID: "user-1", McpServerID: srv.ID, Slug: "example",
		Enabled: true, AuthType: objs.McpAuthOAuth,
		ToolsCache: []objs.McpToolDescriptor{{Name: "search", Description: "web search"}},
	}
	if err := store.PutInstance(ctx, inst); err != nil {
		t.Fatalf("PutInstance() error = %v", err)
	}

	list, err := store.ListInstancesByOwner(ctx, "user-1")
	if err != nil || len(list) != 1 || len(list[0].ToolsCache) != 1 {
		t.Fatalf("ListInstancesByOwner() = %+v, %v", list, err)
	}

	cfg := objs.McpOAuthConfig{ID: "cfg-1", McpInstanceID: inst.ID, ClientID: "client", EncryptedSecret: "ciphertext", AuthorizationURL: "https://mcp.example.com/authorize", TokenURL: "https://mcp.example.com/token"}
	if err := store.PutOAuthConfig(ctx, cfg); err != nil {
		t.Fatalf("PutOAuthConfig() error = %v", err)
	}

	tok := objs.McpOAuthToken{ID: "tok-1", McpOAuthConfigID: cfg.ID, EncryptedAccessTok: "enc-access", ExpiresAt: now.Add(time.Hour)}
	if err := store.PutOAuthToken(ctx, tok); err != nil {
		t.Fatalf("PutOAuthToken() error = %v", err)
	}

	got, ok, err := store.GetOAuthTokenByConfig(ctx, cfg.ID)
	if err != nil || !ok || got.EncryptedAccessTok != "enc-access" {
		t.Fatalf("GetOAuthTokenByConfig() = %+v, %v, %v", got, ok, err)
	}
	if got.Expired(now) {
		t.Error("token should not be expired at issue time")
	}
	if !got.Expired(now.Add(2 * time.Hour)) {
		t.Error("token should be expired after its TTL")
	}
}

func TestMcpStore_AppToolsetConfigDefaultsEnabled(t *testing.T) {
	d := openTestDB(t)
	store := NewMcpStore(d)
	ctx := context.Background()

	cfg, err := store.GetAppToolsetConfig(ctx, objs.ToolsetTypeExaSearch)
	if err != nil {
		t.Fatalf("GetAppToolsetConfig() error = %v", err)
	}
	if !cfg.Enabled {
		t.Error("unconfigured toolset should default to enabled")
	}

	if err := store.SetAppToolsetConfig(ctx, objs.AppToolsetConfig{Type: objs.ToolsetTypeExaSearch, Enabled: false}); err != nil {
		t.Fatalf("SetAppToolsetConfig() error = %v", err)
	}
	cfg, err = store.GetAppToolsetConfig(ctx, objs.ToolsetTypeExaSearch)
	if err != nil || cfg.Enabled {
		t.Fatalf("GetAppToolsetConfig() after disable = %+v, %v", cfg, err)
	}
}

func TestAppStore_InstanceAdvanceAndAccessRequestResolve(t *testing.T) {
	d := openTestDB(t)
	store := NewAppStore(d)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inst := objs.AppInstance{ClientID: "bodhi-app", EncryptedSecret: "enc-secret", Status: objs.AppStatusSetup, CreatedAt: now, UpdatedAt: now}
	if err := store.PutInstance(ctx, inst); err != nil {
		t.Fatalf("PutInstance() error = %v", err)
	}

	if err := inst.Advance(objs.AppStatusResourceAdmin, now.Add(time.Minute)); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := store.PutInstance(ctx, inst); err != nil {
		t.Fatalf("PutInstance() after advance error = %v", err)
	}

	got, ok, err := store.GetInstance(ctx)
	if err != nil || !ok || got.Status != objs.AppStatusResourceAdmin {
		t.Fatalf("GetInstance() = %+v, %v, %v", got, ok, err)
	}

	role := objs.ResourceRoleUser
	ar := objs.AppAccessRequest{
		ID: "ar-1", AppClientID: inst.ClientID, FlowType: objs.FlowTypeRedirect,
		Status: objs.AccessRequestDraft, Requested: map[string]any{"scope": "chat"},
		Approved: map[string]any{}, RequestedRole: &role,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateAccessRequest(ctx, ar); err != nil {
		t.Fatalf("CreateAccessRequest() error = %v", err)
	}

	if err := ar.Resolve(objs.AccessRequestApproved, now.Add(time.Minute)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	ar.ApprovedRole = &role
	if err := store.UpdateAccessRequest(ctx, ar); err != nil {
		t.Fatalf("UpdateAccessRequest() error = %v", err)
	}

	fetched, ok, err := store.GetAccessRequest(ctx, ar.ID)
	if err != nil || !ok || fetched.Status != objs.AccessRequestApproved {
		t.Fatalf("GetAccessRequest() = %+v, %v, %v", fetched, ok, err)
	}
	if fetched.ApprovedRole == nil || *fetched.ApprovedRole != objs.ResourceRoleUser {
		t.Errorf("ApprovedRole round-trip = %v", fetched.ApprovedRole)
	}

	if err := ar.Resolve(objs.AccessRequestDenied, now.Add(2*time.Minute)); err == nil {
		t.Error("Resolve() on an already-resolved request should error")
	}

	list, err := store.ListAccessRequestsByApp(ctx, inst.ClientID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAccessRequestsByApp() = %v, %v", list, err)
	}
}
