package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnknownGenre is stored when a track's genre cannot be resolved.
const UnknownGenre = "Unknown"

// Model is implemented by every persisted entity.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Credential is the access/refresh token pair of one session.
//
// AcquiredAt + ExpiresIn is the absolute expiry instant.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	AcquiredAt   time.Time `json:"acquired_at"`
}

// Complete reports whether the credential carries everything needed to judge expiry.
func (c Credential) Complete() bool {
	return c.AccessToken != "" && c.ExpiresIn > 0 && !c.AcquiredAt.IsZero()
}

// ExpiresAt returns the absolute expiry instant.
func (c Credential) ExpiresAt() time.Time {
	return c.AcquiredAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// Expired reports whether now - AcquiredAt >= ExpiresIn.
func (c Credential) Expired(now time.Time) bool {
	return now.Sub(c.AcquiredAt) >= time.Duration(c.ExpiresIn)*time.Second
}

type User struct {
	ID          string    `db:"id" json:"id"`
	Sequence    int64     `db:"sequence" json:"sequence"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) Validate() error {
	if u.ExternalID == "" {
		return fmt.Errorf("user external id is required")
	}
	return nil
}

type Playlist struct {
	ID            string    `db:"id" json:"id"`
	Sequence      int64     `db:"sequence" json:"sequence"`
	ExternalID    string    `db:"external_id" json:"external_id"`
	OwnerID       string    `db:"owner_id" json:"owner_id"`
	Name          string    `db:"name" json:"name"`
	TrackCount    int       `db:"track_count" json:"track_count"`
	CoverImageURL string    `db:"cover_image_url" json:"cover_image_url"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Playlist) Validate() error {
	if p.ExternalID == "" {
		return fmt.Errorf("playlist external id is required")
	}
	if p.OwnerID == "" {
		return fmt.Errorf("playlist owner is required")
	}
	if p.TrackCount < 0 {
		return fmt.Errorf("playlist track count cannot be negative")
	}
	return nil
}

// SameAs reports whether the mutable fields of p already match other.
func (p *Playlist) SameAs(other Playlist) bool {
	return p.Name == other.Name && p.TrackCount == other.TrackCount && p.CoverImageURL == other.CoverImageURL
}

type Track struct {
	ID            string         `db:"id" json:"id"`
	Sequence      int64          `db:"sequence" json:"sequence"`
	ExternalID    string         `db:"external_id" json:"external_id"`
	Name          string         `db:"name" json:"name"`
	AlbumName     string         `db:"album_name" json:"album_name"`
	ArtistNames   Names          `db:"artist_names" json:"artist_names"`
	CoverImageURL string         `db:"cover_image_url" json:"cover_image_url"`
	Genre         sql.NullString `db:"genre" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

func (t *Track) Validate() error {
	if t.ExternalID == "" {
		return fmt.Errorf("track external id is required")
	}
	return nil
}

// Artists returns the artist names joined for display.
func (t Track) Artists() string {
	return t.ArtistNames.String()
}

// GenreOrUnknown returns the stored genre, or [UnknownGenre] when none was recorded.
func (t Track) GenreOrUnknown() string {
	if !t.Genre.Valid || t.Genre.String == "" {
		return UnknownGenre
	}
	return t.Genre.String
}

// MarshalJSON writes the track with its genre flattened to a string.
func (t Track) MarshalJSON() ([]byte, error) {
	type track Track
	return json.Marshal(struct {
		track
		Genre string `json:"genre"`
	}{track(t), t.GenreOrUnknown()})
}

// URI returns the provider URI used by playlist mutation endpoints.
func (t Track) URI() string {
	return "spotify:track:" + t.ExternalID
}

// Membership links a playlist to a track.
type Membership struct {
	PlaylistID string    `db:"playlist_id"`
	TrackID    string    `db:"track_id"`
	AddedAt    time.Time `db:"added_at"`
}

// Names is an ordered list of names stored as a JSON array.
type Names []string

// String joins the names with ", ".
func (n Names) String() string {
	return strings.Join(n, ", ")
}

// Value implements [driver.Valuer].
func (n Names) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (n *Names) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*n = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Names", src)
	}
	return json.Unmarshal(raw, (*[]string)(n))
}
