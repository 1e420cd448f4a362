package hub

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// ListLocalModels recursively scans {hf_home}/hub/models--*/snapshots/*/*.gguf
// and returns a HubFile per match. Symlinked snapshot entries (the normal
// Hugging Face layout: snapshots/{sha}/{filename} symlinks into
// blobs/{sha}) are resolved to their target size via os.Stat, which
// follows symlinks.
func ListLocalModels(hfHome string) ([]objs.HubFile, error) {
	root := HubRoot(hfHome)
	var out []objs.HubFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if isNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".gguf") {
			return nil
		}
		hf, parseErr := ParsePath(path)
		if parseErr != nil {
			return nil // non-conforming path, silently skip per "mismatching paths are rejected"
		}
		if info, statErr := os.Stat(path); statErr == nil {
			size := info.Size()
			hf.Size = &size
		}
		out = append(out, hf)
		return nil
	})
	if err != nil && !isNotExist(err) {
		return nil, err
	}
	return out, nil
}

// ListModelAliases derives a ModelAlias per discovered GGUF HubFile.
func ListModelAliases(hfHome string) ([]objs.ModelAlias, error) {
	files, err := ListLocalModels(hfHome)
	if err != nil {
		return nil, err
	}
	aliases := make([]objs.ModelAlias, 0, len(files))
	for _, f := range files {
		aliases = append(aliases, objs.ModelAlias{Repo: f.Repo, Filename: f.Filename, Snapshot: f.Snapshot})
	}
	return aliases, nil
}

// FindLocalFile resolves the best match for (repo, filename); a nil
// snapshot means any snapshot is acceptable, and the most recently
// modified match wins.
func FindLocalFile(hfHome string, repo objs.Repo, filename string, snapshot *string) (objs.HubFile, bool, error) {
	files, err := ListLocalModels(hfHome)
	if err != nil {
		return objs.HubFile{}, false, err
	}
	var best *objs.HubFile
	var bestMod time.Time
	for i := range files {
		f := files[i]
		if f.Repo != repo || f.Filename != filename {
			continue
		}
		if snapshot != nil && f.Snapshot != *snapshot {
			continue
		}
		var mod time.Time
		if info, statErr := os.Stat(f.AbsPath()); statErr == nil {
			mod = info.ModTime()
		}
		if best == nil || mod.After(bestMod) {
			best = &files[i]
			bestMod = mod
		}
	}
	if best == nil {
		return objs.HubFile{}, false, nil
	}
	return *best, true, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
