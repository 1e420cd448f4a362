package settings

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// defaultBodhiHome resolves $BODHI_HOME's fallback location using XDG
// conventions when the caller hasn't set it explicitly — grounded on the
// xdg-based home resolution pattern used elsewhere in the reference
// corpus for single-binary local tools.
func defaultBodhiHome() string {
	dir, err := xdg.DataFile(filepath.Join("bodhi", ".keep"))
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return ".bodhi"
		}
		return filepath.Join(home, ".bodhi")
	}
	return filepath.Dir(dir)
}

func errNoStoreForSource(source Source) error {
	return errors.New("settings: no store configured for source " + string(source))
}

// EnsureBodhiHome creates $BODHI_HOME and its standard subdirectories
// (logs, aliases) if they don't already exist. Failure here is one of
// the fatal startup conditions named in the error handling design.
func EnsureBodhiHome(home string) error {
	for _, sub := range []string{"", "logs", "aliases"} {
		if err := os.MkdirAll(filepath.Join(home, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}
