package hub

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// CatalogEventKind distinguishes an appearing vs. disappearing GGUF file.
type CatalogEventKind string

const (
	CatalogFileAdded   CatalogEventKind = "added"
	CatalogFileRemoved CatalogEventKind = "removed"
)

// CatalogEvent is emitted by Watch whenever a .gguf file appears or
// disappears under the hub cache, letting the catalog refresh its
// in-memory model-alias list incrementally instead of rescanning on
// every lookup.
type CatalogEvent struct {
	Kind CatalogEventKind
	Path string
}

// Watch starts an fsnotify watch on {hf_home}/hub and every directory
// beneath it that exists when Watch is called (snapshot directories
// included), emitting CatalogEvents on the returned channel until ctx is
// cancelled. Directories created afterwards are not added to the watch.
// Only .gguf files are reported.
func Watch(ctx context.Context, hfHome string) (<-chan CatalogEvent, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	root := HubRoot(hfHome)
	// best-effort; hub/ may not exist yet on a fresh install
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = w.Add(path)
		}
		return nil
	})

	out := make(chan CatalogEvent, 16)
	go func() {
		defer w.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".gguf" {
					continue
				}
				kind := CatalogFileAdded
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					kind = CatalogFileRemoved
				}
				select {
				case out <- CatalogEvent{Kind: kind, Path: event.Name}:
				case <-ctx.Done():
					return
				}
			case <-w.Errors:
				continue
			}
		}
	}()
	return out, nil
}
