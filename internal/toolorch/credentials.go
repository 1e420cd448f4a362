package toolorch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// Decryptor is the subset of secrets.Encryptor CredentialStore needs.
type Decryptor interface {
	Decrypt(encoded string) (string, error)
}

// OAuthConfigStore and OAuthTokenStore are the persistence seams
// CredentialStore needs to resolve and refresh MCP OAuth credentials.
type OAuthConfigStore interface {
	GetOAuthConfigByInstance(ctx context.Context, instanceID string) (objs.McpOAuthConfig, bool, error)
	GetOAuthTokenByConfig(ctx context.Context, configID string) (objs.McpOAuthToken, bool, error)
	PutOAuthToken(ctx context.Context, tok objs.McpOAuthToken) error
}

// SecretStore resolves the header-auth credential behind an
// McpInstance.AuthUUID.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// CredentialStore implements toolorch.CredentialResolver: header auth
// reads straight through the secrets store keyed by AuthUUID, OAuth auth
// refreshes the stored access token before every connect if it has
// expired.
type CredentialStore struct {
	secrets    SecretStore
	oauth      OAuthConfigStore
	decryptor  Decryptor
	httpClient *http.Client
	now        func() time.Time
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(secrets SecretStore, oauth OAuthConfigStore, decryptor Decryptor, httpClient *http.Client) *CredentialStore {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CredentialStore{secrets: secrets, oauth: oauth, decryptor: decryptor, httpClient: httpClient, now: time.Now}
}

// HeaderCredential resolves the header-auth token stored under
// inst.AuthUUID.
func (c *CredentialStore) HeaderCredential(ctx context.Context, inst objs.McpInstance) (string, error) {
	if inst.AuthUUID == nil {
		return "", fmt.Errorf("mcp instance %s has header auth but no credential bound", inst.ID)
	}
	return c.secrets.Get(ctx, *inst.AuthUUID)
}

// OAuthAccessToken returns a valid access token for inst, refreshing it
// against the config's token URL first if the stored token has expired.
func (c *CredentialStore) OAuthAccessToken(ctx context.Context, inst objs.McpInstance) (string, error) {
	cfg, ok, err := c.oauth.GetOAuthConfigByInstance(ctx, inst.ID)
	if err != nil {
		return "", fmt.Errorf("resolving oauth config: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("mcp instance %s has oauth auth but no config bound", inst.ID)
	}

	tok, ok, err := c.oauth.GetOAuthTokenByConfig(ctx, cfg.ID)
	if err != nil {
		return "", fmt.Errorf("resolving oauth token: %w", err)
	}
	if !ok || tok.Expired(c.now()) {
		tok, err = c.refresh(ctx, cfg, tok)
		if err != nil {
			return "", err
		}
	}

	return c.decryptor.Decrypt(tok.EncryptedAccessTok)
}

func (c *CredentialStore) refresh(ctx context.Context, cfg objs.McpOAuthConfig, stale objs.McpOAuthToken) (objs.McpOAuthToken, error) {
	if stale.EncryptedRefreshTok == nil {
		return objs.McpOAuthToken{}, fmt.Errorf("%w: oauth token for mcp config %s expired with no refresh token", objs.ErrUpstreamUnavailable, cfg.ID)
	}
	refreshToken, err := c.decryptor.Decrypt(*stale.EncryptedRefreshTok)
	if err != nil {
		return objs.McpOAuthToken{}, fmt.Errorf("decrypting refresh token: %w", err)
	}
	secret, err := c.decryptor.Decrypt(cfg.EncryptedSecret)
	if err != nil {
		return objs.McpOAuthToken{}, fmt.Errorf("decrypting client secret: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return objs.McpOAuthToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return objs.McpOAuthToken{}, fmt.Errorf("%w: refreshing oauth token: %v", objs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return objs.McpOAuthToken{}, fmt.Errorf("%w: refresh returned status %d", objs.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return objs.McpOAuthToken{}, fmt.Errorf("decoding refresh response: %w", err)
	}

	encryptedAccess, err := c.encrypt(body.AccessToken)
	if err != nil {
		return objs.McpOAuthToken{}, err
	}
	next := objs.McpOAuthToken{
		ID:               stale.ID,
		McpOAuthConfigID: cfg.ID,
		EncryptedAccessTok: encryptedAccess,
		ExpiresAt:        c.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	if body.RefreshToken != "" {
		encryptedRefresh, err := c.encrypt(body.RefreshToken)
		if err != nil {
			return objs.McpOAuthToken{}, err
		}
		next.EncryptedRefreshTok = &encryptedRefresh
	} else {
		next.EncryptedRefreshTok = stale.EncryptedRefreshTok
	}

	if err := c.oauth.PutOAuthToken(ctx, next); err != nil {
		return objs.McpOAuthToken{}, fmt.Errorf("persisting refreshed oauth token: %w", err)
	}
	return next, nil
}

func (c *CredentialStore) encrypt(plaintext string) (string, error) {
	enc, ok := c.decryptor.(interface{ Encrypt(string) (string, error) })
	if !ok {
		return "", fmt.Errorf("credential store's decryptor cannot encrypt")
	}
	return enc.Encrypt(plaintext)
}

var _ CredentialResolver = (*CredentialStore)(nil)
