package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend is the default backend for headless server deployments
// where no OS keyring is available: an encrypted JSON blob under
// $BODHI_HOME/secrets.enc.json, written atomically via temp-file+rename
// the same way internal/settings.FileStore persists settings.yaml.
type FileBackend struct {
	mu   sync.Mutex
	path string
	enc  *Encryptor
}

// NewFileBackend constructs a FileBackend rooted at path, encrypting
// every value with enc before it touches disk.
func NewFileBackend(path string, enc *Encryptor) *FileBackend {
	return &FileBackend{path: path, enc: enc}
}

func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return out, nil
}

func (f *FileBackend) write(m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".secrets-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileBackend) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return "", err
	}
	encoded, ok := m[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return f.enc.Decrypt(encoded)
}

func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return err
	}
	encoded, err := f.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}
	m[key] = encoded
	return f.write(m)
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load()
	if err != nil {
		return err
	}
	delete(m, key)
	return f.write(m)
}

var _ Store = (*FileBackend)(nil)
