package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// legacyAliasYAML is the on-disk shape of a pre-database alias file from
// $BODHI_HOME/aliases/*.yaml, carried forward read-only for backward
// compatibility. It mirrors a subset of UserAlias's fields; files using
// newer fields the original format never had are simply left zero.
type legacyAliasYAML struct {
	Alias    string `yaml:"alias"`
	Repo     string `yaml:"repo"`
	Filename string `yaml:"filename"`
	Snapshot string `yaml:"snapshot"`
}

// DirLegacyAliasSource implements LegacyAliasSource by reading every
// *.yaml file directly under dir. It never writes; the directory is
// vestigial, kept only so aliases authored before the database-backed
// catalog existed keep resolving.
type DirLegacyAliasSource struct {
	Dir string
}

// ListLegacyAliases reads every *.yaml file in the directory, skipping
// (not failing on) any file that does not parse as a legacy alias —
// a missing directory is treated as zero aliases, not an error.
func (d DirLegacyAliasSource) ListLegacyAliases() ([]objs.UserAlias, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading legacy alias directory: %w", err)
	}

	var out []objs.UserAlias
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(d.Dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var raw legacyAliasYAML
		if err := yaml.Unmarshal(data, &raw); err != nil {
			continue
		}
		if raw.Alias == "" || raw.Filename == "" {
			continue
		}
		repo, err := objs.ParseRepo(raw.Repo)
		if err != nil {
			continue
		}
		out = append(out, objs.UserAlias{
			Name:     raw.Alias,
			Repo:     repo,
			Filename: raw.Filename,
			Snapshot: raw.Snapshot,
		})
	}
	return out, nil
}

var _ LegacyAliasSource = DirLegacyAliasSource{}
