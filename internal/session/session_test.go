package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/shared"
)

type failingStore struct{ *MemoryStore }

func (failingStore) Save(context.Context, *Session) error { return errors.New("disk full") }

func TestSessionCredentials(t *testing.T) {
	ctx := context.Background()
	cred := models.Credential{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600, AcquiredAt: time.Now()}

	t.Run("Set persists through the store", func(t *testing.T) {
		store := NewMemoryStore(10)
		sess := New(time.Hour)
		creds := NewSessionCredentials(store, sess)

		if _, ok := creds.Get(); ok {
			t.Fatal("new session should have no credential")
		}

		if err := creds.Set(ctx, cred); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		loaded, err := store.Load(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Data.Credential == nil || loaded.Data.Credential.AccessToken != "a" {
			t.Errorf("credential not persisted: %+v", loaded.Data)
		}
	})

	t.Run("Clear removes the credential", func(t *testing.T) {
		store := NewMemoryStore(10)
		sess := New(time.Hour)
		creds := NewSessionCredentials(store, sess)
		_ = creds.Set(ctx, cred)

		if err := creds.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if _, ok := creds.Get(); ok {
			t.Error("credential should be gone after Clear")
		}

		loaded, _ := store.Load(ctx, sess.ID)
		if loaded.Data.Credential != nil {
			t.Error("cleared credential should be persisted")
		}
	})

	t.Run("Set keeps the previous value when saving fails", func(t *testing.T) {
		sess := New(time.Hour)
		creds := NewSessionCredentials(failingStore{NewMemoryStore(1)}, sess)

		if err := creds.Set(ctx, cred); err == nil {
			t.Fatal("expected save error")
		}
		if _, ok := creds.Get(); ok {
			t.Error("failed Set should not leave a credential behind")
		}
	})
}

func TestMemoryCredentials(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCredentials(nil)
	if _, ok := m.Get(); ok {
		t.Fatal("expected empty store")
	}

	_ = m.Set(ctx, models.Credential{AccessToken: "x"})
	if c, ok := m.Get(); !ok || c.AccessToken != "x" {
		t.Errorf("unexpected credential %+v", c)
	}

	_ = m.Clear(ctx)
	if _, ok := m.Get(); ok {
		t.Error("expected empty store after Clear")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Load unknown", func(t *testing.T) {
		store := NewMemoryStore(10)
		if _, err := store.Load(ctx, "nope"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		store := NewMemoryStore(10)
		sess := New(time.Hour)
		sess.Data.State = "abc"
		_ = store.Save(ctx, sess)

		loaded, _ := store.Load(ctx, sess.ID)
		loaded.Data.State = "changed"

		again, _ := store.Load(ctx, sess.ID)
		if again.Data.State != "abc" {
			t.Errorf("store was mutated through a loaded session: %q", again.Data.State)
		}
	})

	t.Run("Expired sessions are dropped", func(t *testing.T) {
		store := NewMemoryStore(10)
		sess := New(time.Minute)
		_ = store.Save(ctx, sess)

		store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		if _, err := store.Load(ctx, sess.ID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected expired session to be gone, got %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("expired session should be deleted, have %d", store.Len())
		}
	})

	t.Run("Evicts when full", func(t *testing.T) {
		store := NewMemoryStore(2)
		for range 3 {
			_ = store.Save(ctx, New(time.Hour))
		}
		if store.Len() != 2 {
			t.Errorf("expected 2 sessions, got %d", store.Len())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := NewMemoryStore(2)
		sess := New(time.Hour)
		_ = store.Save(ctx, sess)
		_ = store.Delete(ctx, sess.ID)
		if _, err := store.Load(ctx, sess.ID); err == nil {
			t.Error("expected deleted session to be gone")
		}
	})
}

func TestCookieCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		codec := NewCookieCodec("secret", time.Hour)
		token, err := codec.Encode("session-1")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		id, err := codec.Decode(token)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if id != "session-1" {
			t.Errorf("got %q, want session-1", id)
		}
	})

	t.Run("rejects other secrets", func(t *testing.T) {
		token, _ := NewCookieCodec("one", time.Hour).Encode("s")
		if _, err := NewCookieCodec("two", time.Hour).Decode(token); err == nil {
			t.Error("expected signature error")
		}
	})

	t.Run("rejects expired cookies", func(t *testing.T) {
		codec := NewCookieCodec("secret", time.Minute)
		token, _ := codec.Encode("s")
		codec.now = func() time.Time { return time.Now().Add(time.Hour) }
		if _, err := codec.Decode(token); err == nil {
			t.Error("expected expiry error")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewCookieCodec("secret", time.Hour).Decode("not-a-jwt")
		if err == nil || !strings.Contains(err.Error(), "invalid session cookie") {
			t.Errorf("unexpected error %v", err)
		}
	})
}
