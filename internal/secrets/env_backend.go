package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvBackend is a read-only backend for operator-provided secrets (API
// keys for API aliases, the HF token). It never supports Set/Delete —
// environment variables are provisioned outside the process.
type EnvBackend struct {
	// Prefix is prepended to every key when looking up the environment,
	// e.g. "BODHI_SECRET_" so BODHI_SECRET_ANTHROPIC_API_KEY backs key
	// "ANTHROPIC_API_KEY".
	Prefix string
}

func (e EnvBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(e.Prefix + key)
	if !ok || v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (e EnvBackend) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("secrets: env backend is read-only, cannot set %q", key)
}

func (e EnvBackend) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("secrets: env backend is read-only, cannot delete %q", key)
}

var _ Store = EnvBackend{}
