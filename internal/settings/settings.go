// Package settings implements bodhi's layered configuration service:
// system settings (highest precedence) over process environment over the
// database settings table over settings.yaml over built-in defaults
// (lowest). Reads return the highest-precedence value present, tagged
// with its source; writes target an explicit source and fire synchronous
// change listeners.
package settings

import (
	"sync"
	"time"
)

// Source identifies which precedence layer a value came from.
type Source string

const (
	SourceSystem   Source = "system"
	SourceEnv      Source = "env"
	SourceDatabase Source = "database"
	SourceFile     Source = "file"
	SourceDefault  Source = "default"
)

// precedence orders sources from highest to lowest; index 0 wins ties.
var precedence = []Source{SourceSystem, SourceEnv, SourceDatabase, SourceFile, SourceDefault}

// Setting is a single resolved (key, value, source) triple.
type Setting struct {
	Key    string
	Value  string
	Source Source
}

// ChangeEvent is published synchronously to every registered listener
// after every successful SetDatabase/SetFile, and after a DeleteDatabase
// on a key that resolves before or after the delete. The key's effective
// value need not have changed.
type ChangeEvent struct {
	Key        string
	PrevValue  string
	PrevSource Source
	NewValue   string
	NewSource  Source
}

// Listener observes setting changes. Listeners that need to do async
// work (e.g. swapping the llama-server exec variant) must spawn their
// own goroutine — the service calls listeners synchronously and does not
// wait on them beyond the call itself.
type Listener func(ChangeEvent)

// Store is the backing persistence contract for the database and file
// layers; internal/db provides the SQLite-backed implementation and
// FileStore (file_store.go) provides the settings.yaml implementation.
type Store interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Delete(key string) error
	All() map[string]string
}

// Service resolves reads across the five layers and serializes writes.
// Reads are lock-free snapshot reads; writes take a short mutex, mutate
// the target layer, then notify listeners before releasing it.
type Service struct {
	mu        sync.Mutex
	system    map[string]string // immutable after bootstrap
	env       func(string) (string, bool)
	db        Store
	file      Store
	defaults  map[string]string
	listeners []Listener
}

// Config seeds a new Service. A nil Env skips the environment layer;
// production wiring passes OSEnv.
type Config struct {
	System   map[string]string
	Env      func(string) (string, bool)
	DB       Store
	File     Store
	Defaults map[string]string
}

// New constructs a Service from the five layers. db or file may be nil
// (e.g. during early bootstrap, before the database is open); a nil
// layer is simply skipped during resolution.
func New(cfg Config) *Service {
	if cfg.System == nil {
		cfg.System = map[string]string{}
	}
	if cfg.Defaults == nil {
		cfg.Defaults = map[string]string{}
	}
	return &Service{
		system:   cfg.System,
		env:      cfg.Env,
		db:       cfg.DB,
		file:     cfg.File,
		defaults: cfg.Defaults,
	}
}

// Get resolves key across all five layers, highest precedence first.
func (s *Service) Get(key string) (Setting, bool) {
	if v, ok := s.system[key]; ok {
		return Setting{Key: key, Value: v, Source: SourceSystem}, true
	}
	if s.env != nil {
		if v, ok := s.env(key); ok {
			return Setting{Key: key, Value: v, Source: SourceEnv}, true
		}
	}
	if s.db != nil {
		if v, ok := s.db.Get(key); ok {
			return Setting{Key: key, Value: v, Source: SourceDatabase}, true
		}
	}
	if s.file != nil {
		if v, ok := s.file.Get(key); ok {
			return Setting{Key: key, Value: v, Source: SourceFile}, true
		}
	}
	if v, ok := s.defaults[key]; ok {
		return Setting{Key: key, Value: v, Source: SourceDefault}, true
	}
	return Setting{}, false
}

// GetString is a convenience wrapper returning just the value, or def if
// the key is unset anywhere.
func (s *Service) GetString(key, def string) string {
	if st, ok := s.Get(key); ok {
		return st.Value
	}
	return def
}

// SetDatabase writes key=value to the database layer and notifies
// listeners. Writing to the DB layer has
// no effect on the resolved value if a higher-precedence layer (system or
// env) already sets the same key — the caller still observes the change
// event since the underlying row did change, consistent with "writes
// target a specified source" in the component design.
func (s *Service) SetDatabase(key, value string) error {
	return s.write(key, value, SourceDatabase, s.db)
}

// SetFile writes key=value to settings.yaml, atomically rewritten by the
// Store implementation, preserving unknown keys.
func (s *Service) SetFile(key, value string) error {
	return s.write(key, value, SourceFile, s.file)
}

func (s *Service) write(key, value string, source Source, store Store) error {
	if store == nil {
		return errNoStoreForSource(source)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.Get(key)
	if err := store.Set(key, value); err != nil {
		return err
	}
	next, _ := s.Get(key)

	event := ChangeEvent{Key: key, NewValue: next.Value, NewSource: next.Source}
	if hadPrev {
		event.PrevValue = prev.Value
		event.PrevSource = prev.Source
	}
	s.notify(event)
	return nil
}

// All resolves every key known to any layer into its effective Setting,
// for the admin settings listing endpoint. Defaults are included so the
// listing shows every configurable key even before it's ever been set.
func (s *Service) All() map[string]Setting {
	out := map[string]Setting{}
	for k, v := range s.defaults {
		out[k] = Setting{Key: k, Value: v, Source: SourceDefault}
	}
	if s.file != nil {
		for k := range s.file.All() {
			if st, ok := s.Get(k); ok {
				out[k] = st
			}
		}
	}
	if s.db != nil {
		for k := range s.db.All() {
			if st, ok := s.Get(k); ok {
				out[k] = st
			}
		}
	}
	for k := range s.system {
		if st, ok := s.Get(k); ok {
			out[k] = st
		}
	}
	return out
}

// DeleteDatabase removes key's database-layer row and notifies
// listeners if key resolves in any layer before or after the delete,
// even when its effective value is unchanged. A key that resolves
// nowhere, before or after, produces no event.
func (s *Service) DeleteDatabase(key string) error {
	if s.db == nil {
		return errNoStoreForSource(SourceDatabase)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.Get(key)
	if err := s.db.Delete(key); err != nil {
		return err
	}
	next, hasNext := s.Get(key)
	if !hadPrev && !hasNext {
		return nil
	}
	event := ChangeEvent{Key: key}
	if hadPrev {
		event.PrevValue, event.PrevSource = prev.Value, prev.Source
	}
	if hasNext {
		event.NewValue, event.NewSource = next.Value, next.Source
	}
	s.notify(event)
	return nil
}

// Subscribe registers a listener invoked synchronously for every
// ChangeEvent (see ChangeEvent for when one is published).
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notify(event ChangeEvent) {
	for _, l := range s.listeners {
		l(event)
	}
}

// BootstrapSnapshot resolves the handful of settings that must be known
// before any database connection exists: BODHI_HOME, the logs directory,
// log level, and the log-stdout flag. Only the system and env layers are
// consulted, since the DB and file layers aren't open yet.
type BootstrapSnapshot struct {
	BodhiHome    string
	LogsDir      string
	LogLevel     string
	LogToStdout  bool
	ResolvedAt   time.Time
}

// ResolveBootstrap reads the bootstrap-critical keys from system+env only.
func ResolveBootstrap(system map[string]string, env func(string) (string, bool), now time.Time) BootstrapSnapshot {
	lookup := func(key, def string) string {
		if v, ok := system[key]; ok {
			return v
		}
		if env != nil {
			if v, ok := env(key); ok {
				return v
			}
		}
		return def
	}
	return BootstrapSnapshot{
		BodhiHome:   lookup("BODHI_HOME", defaultBodhiHome()),
		LogsDir:     lookup("BODHI_LOGS", ""),
		LogLevel:    lookup("BODHI_LOG_LEVEL", "info"),
		LogToStdout: lookup("BODHI_LOG_STDOUT", "false") == "true",
		ResolvedAt:  now,
	}
}
