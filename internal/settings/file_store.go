package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// toSettingString flattens a Viper-decoded value (always string-ish for
// a flat settings.yaml, but Viper's YAML decode may produce bool/int for
// unquoted scalars) back to the string form the rest of the settings
// service deals in.
func toSettingString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// FileStore implements Store over settings.yaml. It loads through Viper
// (for its existing YAML decode + env-overlay conventions) but keeps its
// own flat string map of everything Viper parsed, written back through
// plain yaml.v3, so that unknown keys a future bodhi version doesn't
// recognize are kept on rewrite rather than dropped by Viper's typed
// unmarshal path.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	data     map[string]string
	v        *viper.Viper
	watcher  *fsnotify.Watcher
	onChange func()
}

// NewFileStore loads path (creating an empty file if missing) and starts
// watching it for external edits via fsnotify.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, data: map[string]string{}, v: viper.New()}
	fs.v.SetConfigFile(path)
	fs.v.SetConfigType("yaml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			return nil, err
		}
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// reload re-reads the file through Viper (so BODHI_* values Viper itself
// binds to env stay consistent with the rest of the config surface) and
// flattens the result to a string map. Unknown / unrecognized keys still
// round-trip because AllSettings returns everything Viper parsed, not
// just keys this version recognizes.
func (f *FileStore) reload() error {
	if err := f.v.ReadInConfig(); err != nil {
		return err
	}
	raw := f.v.AllSettings()
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		m[k] = toSettingString(v)
	}
	f.mu.Lock()
	f.data = m
	f.mu.Unlock()
	return nil
}

// Watch begins an fsnotify watch on the settings file; onChange is
// invoked (on the watcher's goroutine) after every successful reload
// triggered by an external write.
func (f *FileStore) Watch(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(f.path); err != nil {
		w.Close()
		return err
	}
	f.watcher = w
	f.onChange = onChange
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := f.reload(); err == nil && f.onChange != nil {
					f.onChange()
				}
			}
		}
	}()
	return nil
}

// Close stops the fsnotify watch, if any.
func (f *FileStore) Close() error {
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}

func (f *FileStore) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *FileStore) All() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

// Set rewrites the file atomically: write to a temp file in the same
// directory, then rename over the original, so a crash mid-write never
// leaves a truncated settings.yaml.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	f.data[key] = value
	snapshot := make(map[string]string, len(f.data))
	for k, v := range f.data {
		snapshot[k] = v
	}
	f.mu.Unlock()

	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	delete(f.data, key)
	snapshot := make(map[string]string, len(f.data))
	for k, v := range f.data {
		snapshot[k] = v
	}
	f.mu.Unlock()

	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

var _ Store = (*FileStore)(nil)
