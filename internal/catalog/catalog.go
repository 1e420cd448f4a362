// Package catalog is the unified alias lookup and mutation service: the
// single place that knows the precedence between user-defined aliases,
// filesystem-derived model aliases, legacy YAML aliases, and remote API
// aliases. Grounded on the teacher's layered service composition
// (services/orchestrator), adapted from a multi-backend LLM router down
// to bodhi's three-source (four, with the legacy directory) alias model.
package catalog

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid"

	"github.com/bodhi-ml/bodhi/internal/hub"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// UserAliasStore is the persistence seam for user-defined aliases,
// satisfied by internal/db's SQLite repository in production and by an
// in-memory fake in tests.
type UserAliasStore interface {
	ListUserAliases(ctx context.Context) ([]objs.UserAlias, error)
	GetUserAlias(ctx context.Context, id string) (objs.UserAlias, bool, error)
	PutUserAlias(ctx context.Context, a objs.UserAlias) error
	DeleteUserAlias(ctx context.Context, id string) error
}

// APIAliasStore is the persistence seam for remote API-compatible
// backend aliases.
type APIAliasStore interface {
	ListAPIAliases(ctx context.Context) ([]objs.APIAlias, error)
}

// LegacyAliasSource loads the read-only $BODHI_HOME/aliases/*.yaml
// directory carried forward from the original implementation; see
// legacy.go.
type LegacyAliasSource interface {
	ListLegacyAliases() ([]objs.UserAlias, error)
}

// Service resolves and mutates aliases across all four sources, in the
// precedence order user > model (filesystem) > api > legacy-yaml, the
// legacy directory sitting beneath all three live sources for backward
// compatibility only.
type Service struct {
	Users  UserAliasStore
	APIs   APIAliasStore
	Legacy LegacyAliasSource
	HFHome string

	now func() time.Time
}

// NewService constructs a Service. now defaults to time.Now; tests may
// override it for deterministic CreatedAt stamping.
func NewService(users UserAliasStore, apis APIAliasStore, legacy LegacyAliasSource, hfHome string) *Service {
	return &Service{Users: users, APIs: apis, Legacy: legacy, HFHome: hfHome, now: time.Now}
}

// ListAliases returns the sorted union of every alias across all
// sources, each appearing once keyed by its AliasName.
func (s *Service) ListAliases(ctx context.Context) ([]objs.Alias, error) {
	seen := map[string]bool{}
	var out []objs.Alias

	users, err := s.Users.ListUserAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing user aliases: %w", err)
	}
	for _, u := range users {
		out = append(out, u)
		seen[u.AliasName()] = true
	}

	models, err := hub.ListModelAliases(s.HFHome)
	if err != nil {
		return nil, fmt.Errorf("listing model aliases: %w", err)
	}
	for _, m := range models {
		if seen[m.AliasName()] {
			continue
		}
		out = append(out, m)
		seen[m.AliasName()] = true
	}

	apis, err := s.APIs.ListAPIAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing api aliases: %w", err)
	}
	for _, a := range apis {
		if seen[a.AliasName()] {
			continue
		}
		out = append(out, a)
		seen[a.AliasName()] = true
	}

	if s.Legacy != nil {
		legacy, err := s.Legacy.ListLegacyAliases()
		if err != nil {
			return nil, fmt.Errorf("listing legacy aliases: %w", err)
		}
		for _, l := range legacy {
			if seen[l.AliasName()] {
				continue
			}
			out = append(out, l)
			seen[l.AliasName()] = true
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AliasName() < out[j].AliasName() })
	return out, nil
}

// FindAlias resolves name against the precedence order user > model >
// api > legacy, returning the first source whose CanServe matches. API
// aliases may match via prefix-routing even when name is not their
// literal AliasName; the legacy directory is consulted last.
func (s *Service) FindAlias(ctx context.Context, name string) (objs.Alias, bool, error) {
	users, err := s.Users.ListUserAliases(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("listing user aliases: %w", err)
	}
	for _, u := range users {
		if u.CanServe(name) {
			return u, true, nil
		}
	}

	models, err := hub.ListModelAliases(s.HFHome)
	if err != nil {
		return nil, false, fmt.Errorf("listing model aliases: %w", err)
	}
	for _, m := range models {
		if m.CanServe(name) {
			return m, true, nil
		}
	}

	apis, err := s.APIs.ListAPIAliases(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("listing api aliases: %w", err)
	}
	for _, a := range apis {
		if a.CanServe(name) {
			return a, true, nil
		}
	}

	if s.Legacy != nil {
		legacy, err := s.Legacy.ListLegacyAliases()
		if err != nil {
			return nil, false, fmt.Errorf("listing legacy aliases: %w", err)
		}
		for _, l := range legacy {
			if l.CanServe(name) {
				return l, true, nil
			}
		}
	}

	return nil, false, nil
}

// CopyAlias clones the user alias identified by id under newName,
// minting a fresh ULID identity and fresh timestamps. Only user aliases
// may be copied; model/legacy/api aliases return ErrAliasNotFound since
// they have no mutable identity of the kind copy operates on.
func (s *Service) CopyAlias(ctx context.Context, id string, newName string) (objs.UserAlias, error) {
	src, ok, err := s.Users.GetUserAlias(ctx, id)
	if err != nil {
		return objs.UserAlias{}, fmt.Errorf("looking up source alias: %w", err)
	}
	if !ok {
		return objs.UserAlias{}, fmt.Errorf("%w: %s", objs.ErrAliasNotFound, id)
	}

	if _, exists, err := s.FindAlias(ctx, newName); err != nil {
		return objs.UserAlias{}, fmt.Errorf("checking new alias name: %w", err)
	} else if exists {
		return objs.UserAlias{}, fmt.Errorf("%w: %s", objs.ErrAliasExists, newName)
	}

	now := s.now()
	clone := src
	clone.ID = newULID(now)
	clone.Name = newName
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if err := s.Users.PutUserAlias(ctx, clone); err != nil {
		return objs.UserAlias{}, fmt.Errorf("storing cloned alias: %w", err)
	}
	return clone, nil
}

// DeleteAlias removes the user alias identified by id. Attempting to
// delete a non-user alias (or an unknown id) returns ErrAliasNotFound:
// model aliases are filesystem-derived and vanish with their file, and
// legacy/api aliases are not owned by this mutation path.
func (s *Service) DeleteAlias(ctx context.Context, id string) error {
	_, ok, err := s.Users.GetUserAlias(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up alias: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", objs.ErrAliasNotFound, id)
	}
	if err := s.Users.DeleteUserAlias(ctx, id); err != nil {
		return fmt.Errorf("deleting alias: %w", err)
	}
	return nil
}

// CreateAlias validates name uniqueness across every source, mints an
// ID if absent, and stores a new user alias.
func (s *Service) CreateAlias(ctx context.Context, a objs.UserAlias) (objs.UserAlias, error) {
	if _, exists, err := s.FindAlias(ctx, a.Name); err != nil {
		return objs.UserAlias{}, fmt.Errorf("checking alias name: %w", err)
	} else if exists {
		return objs.UserAlias{}, fmt.Errorf("%w: %s", objs.ErrAliasExists, a.Name)
	}
	now := s.now()
	if a.ID == "" {
		a.ID = newULID(now)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.Users.PutUserAlias(ctx, a); err != nil {
		return objs.UserAlias{}, fmt.Errorf("storing alias: %w", err)
	}
	return a, nil
}

// newULID mints a monotonic-enough ULID seeded from crypto/rand, giving
// clone/create operations a sortable, collision-resistant identity
// without a central sequence.
func newULID(t time.Time) string {
	entropy := ulid.Monotonic(cryptoRandReader{}, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// ulid.New only fails on entropy exhaustion, which crypto/rand
		// does not exhibit; fall back to a timestamp-only id rather
		// than panic.
		return fmt.Sprintf("%d", t.UnixNano())
	}
	return id.String()
}

// cryptoRandReader adapts crypto/rand to ulid's io.Reader-shaped entropy
// source.
type cryptoRandReader struct{}

func (cryptoRandReader) Read(p []byte) (int, error) {
	n, err := rand.Read(p)
	return n, err
}
