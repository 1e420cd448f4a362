package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

type memUserStore struct {
	rows map[string]objs.UserAlias
}

func newMemUserStore() *memUserStore { return &memUserStore{rows: map[string]objs.UserAlias{}} }

func (m *memUserStore) ListUserAliases(ctx context.Context) ([]objs.UserAlias, error) {
	var out []objs.UserAlias
	for _, v := range m.rows {
		out = append(out, v)
	}
	return out, nil
}

func (m *memUserStore) GetUserAlias(ctx context.Context, id string) (objs.UserAlias, bool, error) {
	v, ok := m.rows[id]
	return v, ok, nil
}

func (m *memUserStore) PutUserAlias(ctx context.Context, a objs.UserAlias) error {
	m.rows[a.ID] = a
	return nil
}

func (m *memUserStore) DeleteUserAlias(ctx context.Context, id string) error {
	delete(m.rows, id)
	return nil
}

type memAPIStore struct{ rows []objs.APIAlias }

func (m memAPIStore) ListAPIAliases(ctx context.Context) ([]objs.APIAlias, error) { return m.rows, nil }

func setupHFHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	snapDir := filepath.Join(tmp, "hub", "models--Acme--Tiny", "snapshots", "rev1")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "tiny.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return tmp
}

func TestFindAliasPrecedenceUserBeforeModel(t *testing.T) {
	hfHome := setupHFHome(t)
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "Acme/Tiny:tiny.gguf"}
	svc := NewService(users, memAPIStore{}, nil, hfHome)

	found, ok, err := svc.FindAlias(context.Background(), "Acme/Tiny:tiny.gguf")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if found.Kind() != objs.AliasKindUser {
		t.Fatalf("expected user alias to win over model alias, got kind %s", found.Kind())
	}
}

func TestFindAliasFallsBackToModelAlias(t *testing.T) {
	hfHome := setupHFHome(t)
	svc := NewService(newMemUserStore(), memAPIStore{}, nil, hfHome)

	found, ok, err := svc.FindAlias(context.Background(), "Acme/Tiny:tiny.gguf")
	if err != nil || !ok {
		t.Fatalf("expected model alias match, got ok=%v err=%v", ok, err)
	}
	if found.Kind() != objs.AliasKindModel {
		t.Fatalf("expected model alias, got %s", found.Kind())
	}
}

func TestFindAliasUnknownNameReturnsNotFound(t *testing.T) {
	hfHome := setupHFHome(t)
	svc := NewService(newMemUserStore(), memAPIStore{}, nil, hfHome)

	_, ok, err := svc.FindAlias(context.Background(), "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match for unknown alias name")
	}
}

func TestListAliasesIsUniqueAcrossSources(t *testing.T) {
	hfHome := setupHFHome(t)
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "dup"}
	apis := memAPIStore{rows: []objs.APIAlias{{ID: "api1", Models: []string{"dup"}}}}
	svc := NewService(users, apis, nil, hfHome)

	all, err := svc.ListAliases(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	for _, a := range all {
		seen[a.AliasName()]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Fatalf("alias name %q appeared %d times, expected at most once", name, n)
		}
	}
}

func TestCopyAliasMintsNewIdentity(t *testing.T) {
	hfHome := setupHFHome(t)
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "original", Filename: "tiny.gguf"}
	svc := NewService(users, memAPIStore{}, nil, hfHome)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	clone, err := svc.CopyAlias(context.Background(), "1", "copy")
	if err != nil {
		t.Fatal(err)
	}
	if clone.ID == "1" || clone.ID == "" {
		t.Fatalf("expected fresh ID, got %q", clone.ID)
	}
	if clone.Name != "copy" {
		t.Fatalf("expected cloned name 'copy', got %q", clone.Name)
	}
	if clone.Filename != "tiny.gguf" {
		t.Fatal("expected clone to carry over source fields")
	}
}

func TestCopyAliasRejectsUnknownSource(t *testing.T) {
	hfHome := setupHFHome(t)
	svc := NewService(newMemUserStore(), memAPIStore{}, nil, hfHome)
	_, err := svc.CopyAlias(context.Background(), "missing", "copy")
	if !errors.Is(err, objs.ErrAliasNotFound) {
		t.Fatalf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestCopyAliasRejectsCollidingName(t *testing.T) {
	hfHome := setupHFHome(t)
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "a"}
	users.rows["2"] = objs.UserAlias{ID: "2", Name: "b"}
	svc := NewService(users, memAPIStore{}, nil, hfHome)

	_, err := svc.CopyAlias(context.Background(), "1", "b")
	if !errors.Is(err, objs.ErrAliasExists) {
		t.Fatalf("expected ErrAliasExists, got %v", err)
	}
}

func TestDeleteAliasRemovesUserAlias(t *testing.T) {
	hfHome := setupHFHome(t)
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "a"}
	svc := NewService(users, memAPIStore{}, nil, hfHome)

	if err := svc.DeleteAlias(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := users.rows["1"]; ok {
		t.Fatal("expected alias to be removed from store")
	}
}

func TestDeleteAliasUnknownIDReturnsNotFound(t *testing.T) {
	hfHome := setupHFHome(t)
	svc := NewService(newMemUserStore(), memAPIStore{}, nil, hfHome)
	err := svc.DeleteAlias(context.Background(), "missing")
	if !errors.Is(err, objs.ErrAliasNotFound) {
		t.Fatalf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestLegacyAliasSourceIsLowestPrecedence(t *testing.T) {
	hfHome := setupHFHome(t)
	legacyDir := t.TempDir()
	yamlBody := "alias: shared\nrepo: Acme/Tiny\nfilename: legacy.gguf\nsnapshot: rev1\n"
	if err := os.WriteFile(filepath.Join(legacyDir, "shared.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	users := newMemUserStore()
	users.rows["1"] = objs.UserAlias{ID: "1", Name: "shared"}
	svc := NewService(users, memAPIStore{}, DirLegacyAliasSource{Dir: legacyDir}, hfHome)

	found, ok, err := svc.FindAlias(context.Background(), "shared")
	if err != nil || !ok {
		t.Fatalf("expected a match, got ok=%v err=%v", ok, err)
	}
	if found.Kind() != objs.AliasKindUser {
		t.Fatalf("expected user alias to win over legacy entry with same name, got %s", found.Kind())
	}
}
