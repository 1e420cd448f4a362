package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAPIToken mints a random, URL-safe API token. The returned
// string is shown to the user exactly once; only its bcrypt hash (see
// HashToken) is ever persisted.
func GenerateAPIToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return "bodhiapp_" + base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken bcrypt-hashes an API token for storage, following the same
// never-store-plaintext rule the teacher's credential handling code
// documents for external service keys.
func HashToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(hashed), nil
}

// VerifyToken reports whether token matches the bcrypt hash produced by
// HashToken.
func VerifyToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
