package db

import (
	"context"
	"testing"
	"time"
)

func openTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := OpenSessionStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSessionStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStore_PutGetDelete(t *testing.T) {
	s := openTestSessionStore(t)
	ctx := context.Background()
	now := time.Now()

	sess := Session{
		ID:            "sess-1",
		UserID:        "user-1",
		AccessToken:   "access-token-1",
		OAuthClientID: "bodhi-app",
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Hour),
	}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatalf("Get() found = false, want true")
	}
	if got.UserID != "user-1" || got.AccessToken != "access-token-1" || got.OAuthClientID != "bodhi-app" {
		t.Errorf("Get() = %+v, want matching fields", got)
	}

	// Put again with a refreshed access token upserts in place.
	sess.AccessToken = "access-token-2"
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put() (update) error = %v", err)
	}
	got, _, _ = s.Get(ctx, "sess-1")
	if got.AccessToken != "access-token-2" {
		t.Errorf("AccessToken after upsert = %q, want access-token-2", got.AccessToken)
	}

	if err := s.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, err = s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if ok {
		t.Errorf("Get() after delete found = true, want false")
	}
}

func TestSessionStore_GetMissingReturnsNotFound(t *testing.T) {
	s := openTestSessionStore(t)
	_, ok, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Errorf("Get() found = true for missing session, want false")
	}
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	s := openTestSessionStore(t)
	ctx := context.Background()
	now := time.Now()

	live := Session{ID: "live", UserID: "u1", AccessToken: "t1", OAuthClientID: "app", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := Session{ID: "expired", UserID: "u2", AccessToken: "t2", OAuthClientID: "app", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := s.Put(ctx, live); err != nil {
		t.Fatalf("Put(live) error = %v", err)
	}
	if err := s.Put(ctx, expired); err != nil {
		t.Fatalf("Put(expired) error = %v", err)
	}

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() removed %d rows, want 1", n)
	}

	if _, ok, _ := s.Get(ctx, "expired"); ok {
		t.Errorf("expired session still present after DeleteExpired")
	}
	if _, ok, _ := s.Get(ctx, "live"); !ok {
		t.Errorf("live session removed by DeleteExpired")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	sess := Session{ExpiresAt: now}
	if !sess.Expired(now) {
		t.Errorf("Expired(now) at exact expiry = false, want true")
	}
	if sess.Expired(now.Add(-time.Second)) {
		t.Errorf("Expired() before expiry = true, want false")
	}
}
