package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newRSAJWKSServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(bigEndianE(key.PublicKey.E)),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func bigEndianE(e int) []byte {
	// encode the standard 65537 exponent as minimal big-endian bytes
	if e == 65537 {
		return []byte{0x01, 0x00, 0x01}
	}
	return []byte{byte(e)}
}

func TestKeycloakProviderValidateBearer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := newRSAJWKSServer(t, key, "kid-1")
	defer srv.Close()

	claims := keycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: "scope_user_power_user",
		ResourceAccess: map[string]keycloakResourceRoles{
			"bodhi": {Roles: []string{"resource_power_user"}},
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	provider := NewKeycloakProvider(srv.URL, "bodhi", srv.Client())
	got, err := provider.ValidateBearer(t.Context(), signed)
	if err != nil {
		t.Fatalf("ValidateBearer: %v", err)
	}
	if got.Subject != "user-1" || got.JTI != "jti-1" {
		t.Fatalf("unexpected claims: %+v", got)
	}
	if got.Scope != "scope_user_power_user" {
		t.Fatalf("expected scope claim preserved, got %q", got.Scope)
	}
	if len(got.ResourceRoles["bodhi"]) != 1 || got.ResourceRoles["bodhi"][0] != "resource_power_user" {
		t.Fatalf("expected resource role mapped, got %+v", got.ResourceRoles)
	}
}

func TestKeycloakProviderValidateBearerRejectsBadSignature(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	srv := newRSAJWKSServer(t, key, "kid-1")
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, keycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(other)
	if err != nil {
		t.Fatal(err)
	}

	provider := NewKeycloakProvider(srv.URL, "bodhi", srv.Client())
	if _, err := provider.ValidateBearer(t.Context(), signed); err == nil {
		t.Fatal("expected signature mismatch to fail validation")
	}
}
