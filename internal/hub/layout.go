// Package hub mirrors Hugging Face's local cache layout: discovering
// GGUF files already on disk, mapping on-disk paths back to (repo,
// filename, snapshot) identity, and pulling new files with progress
// reporting and resumability.
package hub

import (
	"fmt"
	"regexp"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// layoutPattern is the single regex all path parsing goes through,
// capturing (hf_cache, user, repo, snapshot, filename); mismatching
// paths are rejected.
var layoutPattern = regexp.MustCompile(
	`^(?P<hf_cache>.*)/models--(?P<user>[^/]+?)--(?P<name>[^/]+)/snapshots/(?P<snapshot>[^/]+)/(?P<filename>.+)$`,
)

// ParsePath maps an absolute on-disk path to a HubFile, or an error if
// the path doesn't match the Hugging Face cache layout.
func ParsePath(path string) (objs.HubFile, error) {
	m := layoutPattern.FindStringSubmatch(path)
	if m == nil {
		return objs.HubFile{}, fmt.Errorf("%w: path %q does not match the hub cache layout", objs.ErrBadRequest, path)
	}
	idx := layoutPattern.SubexpIndex
	repo, err := objs.NewRepo(m[idx("user")], m[idx("name")])
	if err != nil {
		return objs.HubFile{}, err
	}
	return objs.HubFile{
		HfCachePath: m[idx("hf_cache")],
		Repo:        repo,
		Filename:    m[idx("filename")],
		Snapshot:    m[idx("snapshot")],
	}, nil
}

// HubRoot returns the conventional hub/ subdirectory under $HF_HOME that
// list_local_models scans: {hf_home}/hub.
func HubRoot(hfHome string) string {
	return hfHome + "/hub"
}
