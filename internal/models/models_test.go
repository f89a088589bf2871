package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"
)

func TestCredential(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Expired", func(t *testing.T) {
		tc := []struct {
			name string
			age  time.Duration
			want bool
		}{
			{name: "fresh", age: 10 * time.Second, want: false},
			{name: "boundary", age: 3600 * time.Second, want: true},
			{name: "stale", age: 3700 * time.Second, want: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				c := Credential{AccessToken: "a", ExpiresIn: 3600, AcquiredAt: now.Add(-tt.age)}
				if got := c.Expired(now); got != tt.want {
					t.Errorf("Expired() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("Complete", func(t *testing.T) {
		if (Credential{}).Complete() {
			t.Error("empty credential should not be complete")
		}
		if (Credential{AccessToken: "a", ExpiresIn: 3600}).Complete() {
			t.Error("credential without acquired_at should not be complete")
		}
		if !(Credential{AccessToken: "a", ExpiresIn: 3600, AcquiredAt: now}).Complete() {
			t.Error("credential with all fields should be complete")
		}
	})

	t.Run("ExpiresAt", func(t *testing.T) {
		c := Credential{ExpiresIn: 60, AcquiredAt: now}
		if !c.ExpiresAt().Equal(now.Add(time.Minute)) {
			t.Errorf("unexpected expiry %v", c.ExpiresAt())
		}
	})
}

func TestNames(t *testing.T) {
	t.Run("round trip through driver value", func(t *testing.T) {
		in := Names{"Daft Punk", "Pharrell Williams, Nile Rodgers"}
		v, err := in.Value()
		if err != nil {
			t.Fatalf("Value() failed: %v", err)
		}

		var out Names
		if err := out.Scan(v); err != nil {
			t.Fatalf("Scan() failed: %v", err)
		}
		if len(out) != 2 || out[1] != "Pharrell Williams, Nile Rodgers" {
			t.Errorf("names changed through storage: %v", out)
		}
	})

	t.Run("String", func(t *testing.T) {
		if got := (Names{"A", "B"}).String(); got != "A, B" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Scan rejects unknown types", func(t *testing.T) {
		var n Names
		if err := n.Scan(42); err == nil {
			t.Error("expected error scanning int")
		}
	})
}

func TestTrack(t *testing.T) {
	tr := Track{ExternalID: "abc"}
	if tr.GenreOrUnknown() != UnknownGenre {
		t.Errorf("expected %q for null genre", UnknownGenre)
	}

	tr.Genre = sql.NullString{String: "house, french house", Valid: true}
	if tr.GenreOrUnknown() != "house, french house" {
		t.Errorf("unexpected genre %q", tr.GenreOrUnknown())
	}

	if tr.URI() != "spotify:track:abc" {
		t.Errorf("unexpected uri %q", tr.URI())
	}

	if err := (&Track{}).Validate(); err == nil {
		t.Error("track without external id should not validate")
	}
}

func TestTrackJSON(t *testing.T) {
	tests := []struct {
		name  string
		genre sql.NullString
		want  string
	}{
		{"stored genre", sql.NullString{String: "rock, indie", Valid: true}, "rock, indie"},
		{"null genre", sql.NullString{}, UnknownGenre},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Track{ExternalID: "abc", Name: "Song", Genre: tt.genre})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var out map[string]any
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if out["genre"] != tt.want {
				t.Errorf("genre = %v, want %q in %s", out["genre"], tt.want, data)
			}
			if out["external_id"] != "abc" || out["name"] != "Song" {
				t.Errorf("other fields missing from %s", data)
			}
		})
	}

	t.Run("slices of tracks", func(t *testing.T) {
		data, err := json.Marshal([]Track{{ExternalID: "abc", Genre: sql.NullString{String: "house", Valid: true}}})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var out []map[string]any
		if err := json.Unmarshal(data, &out); err != nil || len(out) != 1 || out[0]["genre"] != "house" {
			t.Errorf("unexpected output %s (%v)", data, err)
		}
	})
}

func TestPlaylist(t *testing.T) {
	p := Playlist{ExternalID: "p1", OwnerID: "u1", Name: "Mix", TrackCount: 3}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !p.SameAs(Playlist{Name: "Mix", TrackCount: 3}) {
		t.Error("expected playlists with equal mutable fields to match")
	}
	if p.SameAs(Playlist{Name: "Mix", TrackCount: 4}) {
		t.Error("track count change should be detected")
	}

	p.OwnerID = ""
	if err := p.Validate(); err == nil {
		t.Error("playlist without owner should not validate")
	}
}
