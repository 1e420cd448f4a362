package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"
)

// Encryptor wraps values at rest (OAuth client secrets, cached upstream
// API keys) in AES-256-GCM. The master key lives in a memguard
// LockedBuffer so it is mlock'd and wiped on Destroy rather than sitting
// as a plain []byte the GC might copy around or a crash dump might
// capture.
//
// No AEAD library in the corpus is imported by any example repo; Go's
// stdlib crypto/cipher GCM mode is the idiomatic choice here (see
// DESIGN.md's stdlib-only justification).
type Encryptor struct {
	key *memguard.LockedBuffer
}

// NewEncryptor derives a 32-byte AES key from masterSecret via HKDF-SHA256
// and seals it in a locked buffer. masterSecret is typically sourced from
// the OS keychain/libsecret backend so it never touches settings.yaml.
func NewEncryptor(masterSecret string) (*Encryptor, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("secrets: master secret must not be empty")
	}
	derived := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("bodhi-secrets-encryptor"))
	if _, err := io.ReadFull(kdf, derived); err != nil {
		return nil, fmt.Errorf("deriving encryption key: %w", err)
	}
	buf := memguard.NewBufferFromBytes(derived)
	return &Encryptor{key: buf}, nil
}

// Destroy wipes the master key from memory; call on shutdown.
func (e *Encryptor) Destroy() {
	e.key.Destroy()
}

// Encrypt seals plaintext and returns a base64-encoded nonce||ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key.Bytes())
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	block, err := aes.NewCipher(e.key.Bytes())
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("secrets: ciphertext too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
