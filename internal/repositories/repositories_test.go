package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, ctx context.Context, s *Store, externalID string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: externalID, DisplayName: externalID}
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func mustPlaylist(t *testing.T, ctx context.Context, s *Store, owner *models.User, externalID string) *models.Playlist {
	t.Helper()
	p := &models.Playlist{ExternalID: externalID, OwnerID: owner.ID, Name: externalID}
	if err := s.Playlists.Create(ctx, p); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	return p
}

func mustTrack(t *testing.T, ctx context.Context, s *Store, externalID, name, artist string) *models.Track {
	t.Helper()
	tr := &models.Track{ExternalID: externalID, Name: name, ArtistNames: models.Names{artist}}
	if err := s.Tracks.Create(ctx, tr); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return tr
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		u := mustUser(t, ctx, s, "spotify-user")

		if u.ID == "" || u.Sequence != 1 {
			t.Errorf("expected id and sequence 1, got %q %d", u.ID, u.Sequence)
		}

		got, err := s.Users.GetByExternalID(ctx, "spotify-user")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}
		if got.ID != u.ID {
			t.Errorf("got %q, want %q", got.ID, u.ID)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		if _, err := s.Users.Get(ctx, "nope"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("Unique external id", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		mustUser(t, ctx, s, "dup")
		if err := s.Users.Create(ctx, &models.User{ExternalID: "dup"}); err == nil {
			t.Error("expected unique constraint violation")
		}
	})

	t.Run("GetOrCreate", func(t *testing.T) {
		s := NewStore(setupTestDB(t))

		first, created, err := s.Users.GetOrCreate(ctx, &models.User{ExternalID: "u1", Email: "a@example.com"})
		if err != nil || !created {
			t.Fatalf("GetOrCreate() = %v, %v", created, err)
		}

		second, created, err := s.Users.GetOrCreate(ctx, &models.User{ExternalID: "u1"})
		if err != nil || created {
			t.Fatalf("second GetOrCreate() = %v, %v", created, err)
		}
		if second.ID != first.ID || second.Email != "a@example.com" {
			t.Errorf("expected existing user, got %+v", second)
		}
	})

	t.Run("Update", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		u := mustUser(t, ctx, s, "u1")
		u.DisplayName = "Renamed"
		if err := s.Users.Update(ctx, u); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := s.Users.Get(ctx, u.ID)
		if got.DisplayName != "Renamed" {
			t.Errorf("display name not updated: %q", got.DisplayName)
		}

		if err := s.Users.Update(ctx, &models.User{ID: "missing", ExternalID: "x"}); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create requires an existing owner", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		err := s.Playlists.Create(ctx, &models.Playlist{ExternalID: "p1", OwnerID: "ghost"})
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("Update keeps the owner", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		owner := mustUser(t, ctx, s, "u1")
		other := mustUser(t, ctx, s, "u2")
		p := mustPlaylist(t, ctx, s, owner, "p1")

		p.TrackCount = 12
		p.OwnerID = other.ID
		if err := s.Playlists.Update(ctx, p); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := s.Playlists.GetByExternalID(ctx, "p1")
		if got.TrackCount != 12 {
			t.Errorf("track count = %d", got.TrackCount)
		}
		if got.OwnerID != owner.ID {
			t.Error("owner must not change on update")
		}
	})

	t.Run("ListByOwner", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		a := mustUser(t, ctx, s, "a")
		b := mustUser(t, ctx, s, "b")
		mustPlaylist(t, ctx, s, a, "p1")
		mustPlaylist(t, ctx, s, b, "p2")
		mustPlaylist(t, ctx, s, a, "p3")

		got, err := s.Playlists.ListByOwner(ctx, a.ID)
		if err != nil {
			t.Fatalf("ListByOwner failed: %v", err)
		}
		if len(got) != 2 || got[0].ExternalID != "p1" || got[1].ExternalID != "p3" {
			t.Errorf("unexpected playlists %+v", got)
		}
	})
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create stores names and nullable genre", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		tr := &models.Track{
			ExternalID:  "t1",
			Name:        "Get Lucky",
			ArtistNames: models.Names{"Daft Punk", "Pharrell Williams"},
		}
		if err := s.Tracks.Create(ctx, tr); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := s.Tracks.GetByExternalID(ctx, "t1")
		if err != nil {
			t.Fatalf("GetByExternalID failed: %v", err)
		}
		if got.Artists() != "Daft Punk, Pharrell Williams" {
			t.Errorf("artists = %q", got.Artists())
		}
		if got.Genre.Valid {
			t.Error("genre should be null")
		}
		if got.GenreOrUnknown() != models.UnknownGenre {
			t.Errorf("genre = %q", got.GenreOrUnknown())
		}
	})

	t.Run("ExistingExternalIDs", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		mustTrack(t, ctx, s, "t1", "One", "A")
		mustTrack(t, ctx, s, "t2", "Two", "B")

		found, err := s.Tracks.ExistingExternalIDs(ctx, []string{"t1", "t3"})
		if err != nil {
			t.Fatalf("ExistingExternalIDs failed: %v", err)
		}
		if !found["t1"] || found["t3"] || len(found) != 1 {
			t.Errorf("unexpected result %v", found)
		}
	})

	t.Run("ListByPlaylist sorting", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		owner := mustUser(t, ctx, s, "u")
		p := mustPlaylist(t, ctx, s, owner, "p")

		c := mustTrack(t, ctx, s, "t1", "Charlie", "Alpha")
		a := &models.Track{ExternalID: "t2", Name: "alpha", ArtistNames: models.Names{"Zulu"}, Genre: sql.NullString{String: "jazz", Valid: true}}
		if err := s.Tracks.Create(ctx, a); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		b := &models.Track{ExternalID: "t3", Name: "Bravo", ArtistNames: models.Names{"Mike"}, Genre: sql.NullString{String: "ambient", Valid: true}}
		if err := s.Tracks.Create(ctx, b); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		for _, tr := range []*models.Track{c, a, b} {
			if _, err := s.Memberships.Add(ctx, p.ID, tr.ID); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			time.Sleep(time.Millisecond)
		}

		tc := []struct {
			sort TrackSort
			want []string
		}{
			{sort: SortAdded, want: []string{"Charlie", "alpha", "Bravo"}},
			{sort: SortName, want: []string{"alpha", "Bravo", "Charlie"}},
			{sort: SortArtist, want: []string{"Charlie", "Bravo", "alpha"}},
			{sort: SortGenre, want: []string{"Bravo", "alpha", "Charlie"}},
		}

		for _, tt := range tc {
			t.Run(string(tt.sort), func(t *testing.T) {
				got, err := s.Tracks.ListByPlaylist(ctx, p.ID, tt.sort)
				if err != nil {
					t.Fatalf("ListByPlaylist failed: %v", err)
				}
				for i, name := range tt.want {
					if got[i].Name != name {
						t.Errorf("position %d = %q, want %q", i, got[i].Name, name)
					}
				}
			})
		}
	})

	t.Run("ParseTrackSort", func(t *testing.T) {
		if _, err := ParseTrackSort("genre"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := ParseTrackSort("bpm"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestMembershipRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Add is idempotent", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		owner := mustUser(t, ctx, s, "u")
		p := mustPlaylist(t, ctx, s, owner, "p")
		tr := mustTrack(t, ctx, s, "t1", "One", "A")

		added, err := s.Memberships.Add(ctx, p.ID, tr.ID)
		if err != nil || !added {
			t.Fatalf("first Add() = %v, %v", added, err)
		}
		added, err = s.Memberships.Add(ctx, p.ID, tr.ID)
		if err != nil || added {
			t.Fatalf("second Add() = %v, %v", added, err)
		}

		if n, _ := s.Memberships.Count(ctx, p.ID); n != 1 {
			t.Errorf("expected one membership, got %d", n)
		}
	})

	t.Run("Remove keeps the track row", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		owner := mustUser(t, ctx, s, "u")
		p1 := mustPlaylist(t, ctx, s, owner, "p1")
		p2 := mustPlaylist(t, ctx, s, owner, "p2")
		tr := mustTrack(t, ctx, s, "t1", "One", "A")
		_, _ = s.Memberships.Add(ctx, p1.ID, tr.ID)
		_, _ = s.Memberships.Add(ctx, p2.ID, tr.ID)

		n, err := s.Memberships.Remove(ctx, p1.ID, tr.ID)
		if err != nil || n != 1 {
			t.Fatalf("Remove() = %d, %v", n, err)
		}

		if _, err := s.Tracks.Get(ctx, tr.ID); err != nil {
			t.Errorf("track row should persist: %v", err)
		}
		ids, _ := s.Memberships.TrackIDsByExternalID(ctx, p2.ID)
		if ids["t1"] != tr.ID {
			t.Errorf("other playlist membership should persist, got %v", ids)
		}
	})

	t.Run("Remove with no ids", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		if n, err := s.Memberships.Remove(ctx, "p"); n != 0 || err != nil {
			t.Errorf("Remove() = %d, %v", n, err)
		}
	})
}

func TestStoreInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		err := s.InTx(ctx, func(tx *Repos) error {
			return tx.Users.Create(ctx, &models.User{ExternalID: "u1"})
		})
		if err != nil {
			t.Fatalf("InTx failed: %v", err)
		}
		if _, err := s.Users.GetByExternalID(ctx, "u1"); err != nil {
			t.Errorf("user should be committed: %v", err)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx *Repos) error {
			if err := tx.Users.Create(ctx, &models.User{ExternalID: "u1"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := s.Users.GetByExternalID(ctx, "u1"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("user should be rolled back, got %v", err)
		}

		u := mustUser(t, ctx, s, "u2")
		if u.Sequence != 1 {
			t.Errorf("rolled back sequence should be reused, got %d", u.Sequence)
		}
	})

	t.Run("rolls back on constraint violation", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		mustUser(t, ctx, s, "dup")

		err := s.InTx(ctx, func(tx *Repos) error {
			if err := tx.Users.Create(ctx, &models.User{ExternalID: "fresh"}); err != nil {
				return err
			}
			return tx.Users.Create(ctx, &models.User{ExternalID: "dup"})
		})
		if err == nil {
			t.Fatal("expected unique violation")
		}
		if _, err := s.Users.GetByExternalID(ctx, "fresh"); err == nil {
			t.Error("partial writes should not be visible")
		}
	})
}

func TestStoreConcurrentTx(t *testing.T) {
	ctx := context.Background()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "concurrent.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	s := NewStore(db)

	// Both writers read before they write.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InTx(ctx, func(tx *Repos) error {
				if _, err := tx.Tracks.GetByExternalID(ctx, "shared"); err != nil && !errors.Is(err, shared.ErrTrackNotFound) {
					return err
				}
				time.Sleep(100 * time.Millisecond)
				return tx.Tracks.Create(ctx, &models.Track{ExternalID: "concurrent-" + string(rune('a'+i))})
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d failed: %v", i, err)
		}
	}

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM tracks`); err != nil {
		t.Fatalf("failed to count tracks: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tracks, got %d", count)
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		sess := session.New(time.Hour)
		sess.Data.Credential = &models.Credential{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600, AcquiredAt: time.Now().UTC()}
		sess.Data.UserID = "u1"

		if err := repo.Save(ctx, sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		sess.Data.State = "xyz"
		if err := repo.Save(ctx, sess); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := repo.Load(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.Data.Credential == nil || got.Data.Credential.RefreshToken != "r" {
			t.Errorf("credential not restored: %+v", got.Data)
		}
		if got.Data.State != "xyz" || got.Data.UserID != "u1" {
			t.Errorf("data not updated: %+v", got.Data)
		}
	})

	t.Run("expired sessions are invisible and purged", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t)).WithLifetime(time.Minute)
		sess := session.New(time.Minute)
		_ = repo.Save(ctx, sess)

		repo.now = func() time.Time { return time.Now().Add(time.Hour) }
		if _, err := repo.Load(ctx, sess.ID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}

		n, err := repo.Purge(ctx)
		if err != nil || n != 1 {
			t.Errorf("Purge() = %d, %v", n, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		sess := session.New(time.Hour)
		_ = repo.Save(ctx, sess)
		_ = repo.Delete(ctx, sess.ID)
		if _, err := repo.Load(ctx, sess.ID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("backs SessionCredentials", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		sess := session.New(time.Hour)
		creds := session.NewSessionCredentials(repo, sess)

		if err := creds.Set(ctx, models.Credential{AccessToken: "x", ExpiresIn: 60, AcquiredAt: time.Now()}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := repo.Load(ctx, sess.ID)
		if err != nil || got.Data.Credential.AccessToken != "x" {
			t.Errorf("Load() = %+v, %v", got, err)
		}
	})
}

func TestRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		s := NewStore(setupTestDB(t))

		if err := s.Users.Create(ctx, &models.User{DisplayName: "no id"}); err == nil {
			t.Error("expected validation error for user without external id")
		}
		if err := s.Tracks.Create(ctx, &models.Track{Name: "no id"}); err == nil {
			t.Error("expected validation error for track without external id")
		}
		owner := mustUser(t, ctx, s, "owner")
		if err := s.Playlists.Create(ctx, &models.Playlist{ExternalID: "p", OwnerID: owner.ID, TrackCount: -1}); err == nil {
			t.Error("expected validation error for negative track count")
		}
	})

	t.Run("duplicate external id", func(t *testing.T) {
		s := NewStore(setupTestDB(t))
		mustTrack(t, ctx, s, "t1", "Song", "Artist")

		err := s.Tracks.Create(ctx, &models.Track{ExternalID: "t1", Name: "Again"})
		if err == nil {
			t.Fatal("expected unique constraint error")
		}
	})

	t.Run("closed database", func(t *testing.T) {
		db := setupTestDB(t)
		s := NewStore(db)
		db.Close()

		if _, err := s.Users.Get(ctx, "x"); err == nil || errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected query error, got %v", err)
		}
		if _, err := s.Playlists.ListByOwner(ctx, "x"); err == nil {
			t.Error("expected list error")
		}
		if _, err := s.Memberships.Add(ctx, "p", "t"); err == nil {
			t.Error("expected insert error")
		}
		if err := s.InTx(ctx, func(*Repos) error { return nil }); err == nil {
			t.Error("expected begin error")
		}
	})
}
