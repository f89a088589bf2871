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

const playlistColumns = `id, sequence, external_id, owner_id, name, track_count, cover_image_url, created_at, updated_at`

type PlaylistRepository struct {
	db sqlx.ExtContext
}

func NewPlaylistRepository(db sqlx.ExtContext) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist with a generated ID and sequence.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	playlist.ID = shared.GenerateID()
	playlist.Sequence = sequence
	playlist.CreatedAt, playlist.UpdatedAt = now, now

	query := `INSERT INTO playlists (` + playlistColumns + `)
		VALUES (:id, :sequence, :external_id, :owner_id, :name, :track_count, :cover_image_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, playlist); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PlaylistRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Playlist, error) {
	return r.getBy(ctx, "external_id", externalID)
}

func (r *PlaylistRepository) getBy(ctx context.Context, column, value string) (*models.Playlist, error) {
	var playlist models.Playlist
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE ` + column + ` = ?`
	if err := sqlx.GetContext(ctx, r.db, &playlist, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, value)
		}
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	return &playlist, nil
}

// Update writes the mutable fields of a playlist. The owner is never changed.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	playlist.UpdatedAt = time.Now().UTC()

	query := `UPDATE playlists
		SET name = :name, track_count = :track_count, cover_image_url = :cover_image_url, updated_at = :updated_at
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, playlist)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireRow(res, shared.ErrPlaylistNotFound, playlist.ID)
}

// ListByOwner returns the playlists owned by ownerID in insertion order.
func (r *PlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE owner_id = ? ORDER BY sequence ASC`
	if err := sqlx.SelectContext(ctx, r.db, &playlists, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	return playlists, nil
}

// Count returns the number of mirrored playlists.
func (r *PlaylistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM playlists`); err != nil {
		return 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return n, nil
}
