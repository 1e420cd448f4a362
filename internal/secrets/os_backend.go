package secrets

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// execFunc is the injectable command constructor tests override, the
// same seam the teacher's secrets manager used for its backend probes.
type execFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// KeychainBackend shells out to the macOS "security" CLI. Only usable
// when runtime.GOOS == "darwin"; elsewhere Get and Set return
// ErrSecretNotFound and Delete is a no-op that returns nil.
type KeychainBackend struct {
	Service string
	exec    execFunc
}

// NewKeychainBackend constructs a KeychainBackend for the given service
// namespace (passed as the "-a" account argument to `security`).
func NewKeychainBackend(service string) *KeychainBackend {
	return &KeychainBackend{Service: service, exec: exec.CommandContext}
}

func (k *KeychainBackend) available() bool { return runtime.GOOS == "darwin" }

func (k *KeychainBackend) Get(ctx context.Context, key string) (string, error) {
	if !k.available() {
		return "", ErrSecretNotFound
	}
	cmd := k.exec(ctx, "security", "find-generic-password", "-a", k.Service, "-s", key, "-w")
	out, err := cmd.Output()
	if err != nil {
		return "", ErrSecretNotFound
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (k *KeychainBackend) Set(ctx context.Context, key, value string) error {
	if !k.available() {
		return ErrSecretNotFound
	}
	cmd := k.exec(ctx, "security", "add-generic-password", "-U", "-a", k.Service, "-s", key, "-w", value)
	return cmd.Run()
}

func (k *KeychainBackend) Delete(ctx context.Context, key string) error {
	if !k.available() {
		return nil
	}
	cmd := k.exec(ctx, "security", "delete-generic-password", "-a", k.Service, "-s", key)
	_ = cmd.Run() // absent entry exits non-zero; deleting an absent key is not an error
	return nil
}

var _ Store = (*KeychainBackend)(nil)

// LibsecretBackend shells out to the Linux "secret-tool" CLI (GNOME
// Keyring / Secret Service). Only usable when runtime.GOOS == "linux".
type LibsecretBackend struct {
	Service string
	exec    execFunc
}

// NewLibsecretBackend constructs a LibsecretBackend for the given
// service namespace.
func NewLibsecretBackend(service string) *LibsecretBackend {
	return &LibsecretBackend{Service: service, exec: exec.CommandContext}
}

func (l *LibsecretBackend) available() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := exec.LookPath("secret-tool")
	return err == nil
}

func (l *LibsecretBackend) Get(ctx context.Context, key string) (string, error) {
	if !l.available() {
		return "", ErrSecretNotFound
	}
	cmd := l.exec(ctx, "secret-tool", "lookup", "service", l.Service, "key", key)
	out, err := cmd.Output()
	if err != nil {
		return "", ErrSecretNotFound
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (l *LibsecretBackend) Set(ctx context.Context, key, value string) error {
	if !l.available() {
		return ErrSecretNotFound
	}
	cmd := l.exec(ctx, "secret-tool", "store", "--label", l.Service+" "+key, "service", l.Service, "key", key)
	cmd.Stdin = strings.NewReader(value)
	return cmd.Run()
}

func (l *LibsecretBackend) Delete(ctx context.Context, key string) error {
	if !l.available() {
		return nil
	}
	cmd := l.exec(ctx, "secret-tool", "clear", "service", l.Service, "key", key)
	_ = cmd.Run()
	return nil
}

var _ Store = (*LibsecretBackend)(nil)
