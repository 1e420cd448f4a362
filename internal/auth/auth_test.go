package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/objs"
	"github.com/bodhi-ml/bodhi/internal/secrets"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeIdentityProvider returns canned claims keyed by the bearer token
// value, so each test wires exactly the tokens it needs.
type fakeIdentityProvider struct {
	claims map[string]*TokenClaims
}

func (f *fakeIdentityProvider) ValidateBearer(_ context.Context, token string) (*TokenClaims, error) {
	c, ok := f.claims[token]
	if !ok {
		return nil, errNotApplicable
	}
	return c, nil
}

func (f *fakeIdentityProvider) ExchangeToken(_ context.Context, _, _, requestedScope string) (*ExchangedToken, error) {
	return &ExchangedToken{AccessToken: "exchanged-" + requestedScope, ExpiresAtUnix: time.Now().Add(time.Hour).Unix()}, nil
}

func (f *fakeIdentityProvider) RegisterClient(context.Context, string) (string, string, error) {
	return "client", "secret", nil
}

func (f *fakeIdentityProvider) ExchangeAuthorizationCode(context.Context, string, string, string, string) (*ExchangedToken, error) {
	return &ExchangedToken{AccessToken: "exchanged-code", ExpiresAtUnix: time.Now().Add(time.Hour).Unix()}, nil
}

var _ IdentityProvider = (*fakeIdentityProvider)(nil)

func newTestStores(t *testing.T) (*db.TokenStore, *db.SessionStore, func()) {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	sessions, err := db.OpenSessionStore(":memory:")
	if err != nil {
		t.Fatalf("opening test session store: %v", err)
	}
	return db.NewTokenStore(d), sessions, func() {
		d.Close()
		sessions.Close()
	}
}

func newRequest(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	return c, rec
}

func TestChain_ApiTokenStrategyGrantsApiTokenContext(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	plaintext, err := secrets.GenerateAPIToken()
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	hash, err := secrets.HashToken(plaintext)
	if err != nil {
		t.Fatalf("hashing token: %v", err)
	}
	if err := tokens.Create(context.Background(), db.APIToken{
		ID: "tok-1", Name: "ci", UserID: "user-1", TokenHash: hash,
		TokenScope: "scope_token_power_user", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("creating token: %v", err)
	}

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	c, rec := newRequest(t)
	c.Request.Header.Set("Authorization", "Bearer "+plaintext)
	handler(c)

	ctx := GetAuthContext(c)
	apiTok, ok := ctx.(objs.ApiToken)
	if !ok {
		t.Fatalf("expected ApiToken context, got %T", ctx)
	}
	if apiTok.UserIDValue != "user-1" {
		t.Errorf("user id = %q, want user-1", apiTok.UserIDValue)
	}
	if apiTok.TokenScope != objs.TokenScopePowerUser {
		t.Errorf("token scope = %v, want PowerUser", apiTok.TokenScope)
	}
	if rec.Header().Get("X-Bodhiapp-User-Id") != "user-1" {
		t.Errorf("missing X-Bodhiapp-User-Id header")
	}
}

func TestChain_InactiveApiTokenIsRejected(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	plaintext, _ := secrets.GenerateAPIToken()
	hash, _ := secrets.HashToken(plaintext)
	if err := tokens.Create(context.Background(), db.APIToken{
		ID: "tok-2", Name: "revoked", UserID: "user-1", TokenHash: hash,
		TokenScope: "scope_token_user", Status: db.TokenStatusInactive, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("creating token: %v", err)
	}

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	c, rec := newRequest(t)
	c.Request.Header.Set("Authorization", "Bearer "+plaintext)
	handler(c)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChain_SessionCookieRequiresSameOrigin(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	if err := sessions.Put(context.Background(), db.Session{
		ID: "sess-1", UserID: "user-1", AccessToken: "access-1",
		OAuthClientID: "bodhi-app", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("storing session: %v", err)
	}

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{
		"access-1": {Subject: "user-1", JTI: "jti-1", ResourceRoles: map[string][]string{
			"bodhi-app": {"resource_power_user"},
		}},
	}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	// Without Sec-Fetch-Site, falls through to anonymous rather than
	// granting session access to a cross-site request.
	c, _ := newRequest(t)
	c.Request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	handler(c)
	if _, ok := GetAuthContext(c).(objs.Anonymous); !ok {
		t.Fatalf("expected Anonymous without Sec-Fetch-Site, got %T", GetAuthContext(c))
	}

	c2, rec2 := newRequest(t)
	c2.Request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	c2.Request.Header.Set("Sec-Fetch-Site", "same-origin")
	handler(c2)
	sess, ok := GetAuthContext(c2).(objs.Session)
	if !ok {
		t.Fatalf("expected Session context, got %T", GetAuthContext(c2))
	}
	if sess.ResourceRole == nil || *sess.ResourceRole != objs.ResourceRolePowerUser {
		t.Errorf("resource role = %v, want PowerUser", sess.ResourceRole)
	}
	if rec2.Header().Get("X-Bodhiapp-Role") != "resource_power_user" {
		t.Errorf("missing X-Bodhiapp-Role header")
	}
}

func TestChain_ExpiredSessionIsRejected(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	if err := sessions.Put(context.Background(), db.Session{
		ID: "sess-old", UserID: "user-1", AccessToken: "access-1",
		OAuthClientID: "bodhi-app", CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("storing session: %v", err)
	}

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	c, rec := newRequest(t)
	c.Request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-old"})
	c.Request.Header.Set("Sec-Fetch-Site", "same-origin")
	handler(c)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChain_OAuthBearerUserScopeExchangesToExternalApp(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{
		"user-jwt": {Subject: "user-1", JTI: "jti-42", Scope: "scope_user_power_user"},
	}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	c, _ := newRequest(t)
	c.Request.Header.Set("Authorization", "Bearer user-jwt")
	handler(c)

	ext, ok := GetAuthContext(c).(objs.ExternalApp)
	if !ok {
		t.Fatalf("expected ExternalApp context, got %T", GetAuthContext(c))
	}
	if ext.UserScope != objs.UserScopePowerUser {
		t.Errorf("user scope = %v, want PowerUser", ext.UserScope)
	}
	if ext.ExchangedToken != "exchanged-scope_user_power_user" {
		t.Errorf("exchanged token = %q", ext.ExchangedToken)
	}
}

func TestChain_NoCredentialsFallsBackToAnonymous(t *testing.T) {
	tokens, sessions, cleanup := newTestStores(t)
	defer cleanup()

	idp := &fakeIdentityProvider{claims: map[string]*TokenClaims{}}
	handler := Chain(tokens, sessions, idp, NewExchangeCache(idp), "bodhi-app")

	c, rec := newRequest(t)
	handler(c)

	if _, ok := GetAuthContext(c).(objs.Anonymous); !ok {
		t.Fatalf("expected Anonymous context, got %T", GetAuthContext(c))
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (no abort)", rec.Code)
	}
}

func TestExchangeCache_CoalescesConcurrentExchanges(t *testing.T) {
	idp := &countingIdentityProvider{fakeIdentityProvider: fakeIdentityProvider{claims: map[string]*TokenClaims{}}}
	cache := NewExchangeCache(idp)

	const n = 8
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := cache.Exchange(context.Background(), "app", "same-jti", "orig-token", "scope_user_user")
			if err != nil {
				t.Errorf("exchange: %v", err)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	if idp.calls.Load() != 1 {
		t.Errorf("ExchangeToken called %d times, want 1 (singleflight should coalesce)", idp.calls.Load())
	}
}

func TestExchangeCache_CachesAcrossCalls(t *testing.T) {
	idp := &countingIdentityProvider{fakeIdentityProvider: fakeIdentityProvider{claims: map[string]*TokenClaims{}}}
	cache := NewExchangeCache(idp)

	if _, err := cache.Exchange(context.Background(), "app", "jti-1", "tok", "scope_user_user"); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if _, err := cache.Exchange(context.Background(), "app", "jti-1", "tok", "scope_user_user"); err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if idp.calls.Load() != 1 {
		t.Errorf("ExchangeToken called %d times, want 1 (second call should hit cache)", idp.calls.Load())
	}
}

func TestRequireTier_SessionOnlyRejectsApiToken(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/admin/users", nil)
	SetAuthContext(c, objs.ApiToken{UserIDValue: "u1", TokenScope: objs.TokenScopePowerUser, AccessToken: "t"})

	RequireTier(TierSessionOnly)(c)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireTier_ResourceRoleLattice(t *testing.T) {
	managerRole := objs.ResourceRoleManager
	tests := []struct {
		name    string
		tier    RouteTier
		allowed bool
	}{
		{"manager clears user tier", TierUser, true},
		{"manager clears manager tier", TierManager, true},
		{"manager fails admin tier", TierAdmin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
			SetAuthContext(c, objs.Session{UserIDValue: "u1", ResourceRole: &managerRole, AccessToken: "t"})

			RequireTier(tt.tier)(c)

			gotAllowed := rec.Code == http.StatusOK || rec.Code == 0
			if gotAllowed != tt.allowed {
				t.Errorf("status = %d, allowed = %v, want %v", rec.Code, gotAllowed, tt.allowed)
			}
		})
	}
}

func TestRequireTier_ApiTokenNeverClearsManagerTier(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	SetAuthContext(c, objs.ApiToken{UserIDValue: "u1", TokenScope: objs.TokenScopePowerUser, AccessToken: "t"})

	RequireTier(TierManager)(c)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (api tokens have no manager rung)", rec.Code)
	}
}

func TestRequireTier_AnonymousAllowedOnAnonymousTier(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)

	RequireTier(TierAnonymous)(c)

	if rec.Code != http.StatusOK && rec.Code != 0 {
		t.Errorf("status = %d, want no abort", rec.Code)
	}
}

// countingIdentityProvider wraps fakeIdentityProvider to count
// ExchangeToken invocations for the coalescing tests.
type countingIdentityProvider struct {
	fakeIdentityProvider
	calls counter
}

type counter struct{ n int64 }

func (c *counter) Load() int64 { return c.n }

func (f *countingIdentityProvider) ExchangeToken(ctx context.Context, appClientID, originalToken, requestedScope string) (*ExchangedToken, error) {
	f.calls.n++
	return f.fakeIdentityProvider.ExchangeToken(ctx, appClientID, originalToken, requestedScope)
}
