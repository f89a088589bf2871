package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MembershipRepository manages playlist_tracks rows.
type MembershipRepository struct {
	db sqlx.ExtContext
}

func NewMembershipRepository(db sqlx.ExtContext) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Add links a track to a playlist. Linking an already linked pair is a no-op.
//
// The returned bool reports whether a row was inserted.
func (r *MembershipRepository) Add(ctx context.Context, playlistID, trackID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_tracks (playlist_id, track_id, added_at) VALUES (?, ?, ?)`,
		playlistID, trackID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Remove unlinks the given tracks from a playlist and returns how many links were removed.
func (r *MembershipRepository) Remove(ctx context.Context, playlistID string, trackIDs ...string) (int64, error) {
	if len(trackIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id IN (?)`, playlistID, trackIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove memberships: %w", err)
	}
	return res.RowsAffected()
}

// TrackIDsByExternalID maps the external id of every track linked to playlistID to its local id.
func (r *MembershipRepository) TrackIDsByExternalID(ctx context.Context, playlistID string) (map[string]string, error) {
	var rows []struct {
		ExternalID string `db:"external_id"`
		TrackID    string `db:"track_id"`
	}

	query := `SELECT t.external_id, pt.track_id
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?`

	if err := sqlx.SelectContext(ctx, r.db, &rows, query, playlistID); err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}

	ids := make(map[string]string, len(rows))
	for _, row := range rows {
		ids[row.ExternalID] = row.TrackID
	}
	return ids, nil
}

// Count returns the number of tracks linked to playlistID.
func (r *MembershipRepository) Count(ctx context.Context, playlistID string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?`, playlistID); err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return n, nil
}

// CountAll returns the total number of membership rows.
func (r *MembershipRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM playlist_tracks`); err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return n, nil
}
