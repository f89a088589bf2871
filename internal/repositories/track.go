package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/shared"
)

const trackColumns = `id, sequence, external_id, name, album_name, artist_names, cover_image_url, genre, created_at, updated_at`

// TrackSort selects the ordering of [TrackRepository.ListByPlaylist].
type TrackSort string

const (
	SortAdded  TrackSort = ""
	SortArtist TrackSort = "artist"
	SortAlbum  TrackSort = "album"
	SortName   TrackSort = "name"
	SortGenre  TrackSort = "genre"
)

// ParseTrackSort validates a user-supplied sort key.
func ParseTrackSort(s string) (TrackSort, error) {
	switch ts := TrackSort(s); ts {
	case SortAdded, SortArtist, SortAlbum, SortName, SortGenre:
		return ts, nil
	default:
		return "", fmt.Errorf("%w: sort by %q", shared.ErrInvalidArgument, s)
	}
}

func (s TrackSort) orderBy() string {
	switch s {
	case SortArtist:
		return "t.artist_names COLLATE NOCASE, t.name COLLATE NOCASE"
	case SortAlbum:
		return "t.album_name COLLATE NOCASE, t.name COLLATE NOCASE"
	case SortName:
		return "t.name COLLATE NOCASE"
	case SortGenre:
		return "COALESCE(t.genre, '" + models.UnknownGenre + "') COLLATE NOCASE, t.name COLLATE NOCASE"
	default:
		return "pt.added_at, t.sequence"
	}
}

type TrackRepository struct {
	db sqlx.ExtContext
}

func NewTrackRepository(db sqlx.ExtContext) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track with a generated ID and sequence.
func (r *TrackRepository) Create(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	track.ID = shared.GenerateID()
	track.Sequence = sequence
	track.CreatedAt, track.UpdatedAt = now, now

	query := `INSERT INTO tracks (` + trackColumns + `)
		VALUES (:id, :sequence, :external_id, :name, :album_name, :artist_names, :cover_image_url, :genre, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, track); err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

func (r *TrackRepository) Get(ctx context.Context, id string) (*models.Track, error) {
	return r.getBy(ctx, "id", id)
}

func (r *TrackRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Track, error) {
	return r.getBy(ctx, "external_id", externalID)
}

func (r *TrackRepository) getBy(ctx context.Context, column, value string) (*models.Track, error) {
	var track models.Track
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE ` + column + ` = ?`
	if err := sqlx.GetContext(ctx, r.db, &track, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, value)
		}
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	return &track, nil
}

// ExistingExternalIDs returns the subset of ids already mirrored as tracks.
func (r *TrackRepository) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT external_id FROM tracks WHERE external_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var existing []string
	if err := sqlx.SelectContext(ctx, r.db, &existing, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// ListByPlaylist returns the tracks linked to playlistID in the requested order.
func (r *TrackRepository) ListByPlaylist(ctx context.Context, playlistID string, sort TrackSort) ([]models.Track, error) {
	query := `SELECT t.id, t.sequence, t.external_id, t.name, t.album_name, t.artist_names, t.cover_image_url, t.genre, t.created_at, t.updated_at
		FROM tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY ` + sort.orderBy()

	var tracks []models.Track
	if err := sqlx.SelectContext(ctx, r.db, &tracks, query, playlistID); err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	return tracks, nil
}

// Count returns the number of mirrored tracks.
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM tracks`); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
