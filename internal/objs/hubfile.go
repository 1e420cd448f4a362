package objs

import "path/filepath"

// HubFile is a concrete (repo, filename, snapshot) materialized on disk
// under the Hugging Face cache. It is derived from the filesystem, never
// persisted directly — its identity is the triple, not a surrogate key.
type HubFile struct {
	HfCachePath string
	Repo        Repo
	Filename    string
	Snapshot    string
	Size        *int64
}

// AbsPath reconstructs the absolute on-disk path this HubFile was
// discovered at: {hf_cache}/models--{user}--{name}/snapshots/{snapshot}/{filename}.
func (h HubFile) AbsPath() string {
	return filepath.Join(h.HfCachePath, h.Repo.FolderName(), "snapshots", h.Snapshot, h.Filename)
}

// Identity returns the (repo, filename, snapshot) triple used for
// equality and deduplication.
func (h HubFile) Identity() (Repo, string, string) {
	return h.Repo, h.Filename, h.Snapshot
}
