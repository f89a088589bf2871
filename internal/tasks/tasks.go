package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// Remote is the read side of the music provider used by a reconciliation pass.
//
// [services.SpotifyClient] satisfies it.
type Remote interface {
	ArtistFetcher
	UserPlaylists(ctx context.Context) *services.Pager[services.SpotifySimplePlaylist]
	PlaylistTracks(ctx context.Context, playlistID string) *services.Pager[services.SpotifyPlaylistTrack]
}

// Editor is a [Remote] that can also change playlist contents.
type Editor interface {
	Remote
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	RemoveTracks(ctx context.Context, playlistID string, uris []string) error
}

// TrackSyncResult summarizes one [MirrorEngine.SyncTracks] pass.
type TrackSyncResult struct {
	Added   int // memberships inserted
	Removed int // memberships deleted
	Created int // track rows inserted
	Skipped int // remote items without an id
	Total   int // distinct remote tracks with an id
}

// Changed reports whether the pass wrote anything.
func (r *TrackSyncResult) Changed() bool {
	return r.Added+r.Removed+r.Created > 0
}

// MirrorEngine reconciles remote playlists and their tracks into the local store.
type MirrorEngine struct {
	store  *repositories.Store
	logger *log.Logger
	locks  *keyedMutex
}

// NewMirrorEngine creates a new [MirrorEngine] over store.
func NewMirrorEngine(store *repositories.Store, logger *log.Logger) *MirrorEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &MirrorEngine{store: store, logger: logger, locks: newKeyedMutex()}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *MirrorEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// SyncPlaylists mirrors every playlist visible to user and returns the playlists user owns locally.
func (e *MirrorEngine) SyncPlaylists(ctx context.Context, remote Remote, user *models.User) ([]models.Playlist, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
	}

	items, err := remote.UserPlaylists(ctx).Collect()
	if err != nil {
		return nil, &SyncError{Reason: PartialPagination, Err: err}
	}

	var created, updated, skipped int
	err = e.store.InTx(ctx, func(tx *repositories.Repos) error {
		for _, item := range items {
			if item.ID == "" {
				skipped++
				e.logger.Warn("skipping playlist", "name", item.Name, "error", shared.ErrMissingExternalID)
				continue
			}

			incoming := models.Playlist{
				ExternalID:    item.ID,
				OwnerID:       user.ID,
				Name:          item.Name,
				TrackCount:    item.Tracks.Total,
				CoverImageURL: item.CoverURL(),
			}

			existing, err := tx.Playlists.GetByExternalID(ctx, item.ID)
			switch {
			case errors.Is(err, shared.ErrPlaylistNotFound):
				if err := tx.Playlists.Create(ctx, &incoming); err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			case !existing.SameAs(incoming):
				existing.Name = incoming.Name
				existing.TrackCount = incoming.TrackCount
				existing.CoverImageURL = incoming.CoverImageURL
				if err := tx.Playlists.Update(ctx, existing); err != nil {
					return err
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, &SyncError{Reason: PersistFailed, Err: err}
	}

	e.logger.Info("synced playlists", "user", user.ExternalID, "remote", len(items), "created", created, "updated", updated, "skipped", skipped)
	return e.store.Playlists.ListByOwner(ctx, user.ID)
}

// SyncTracks mirrors the membership of playlist.
//
// Concurrent passes over the same playlist are serialized.
func (e *MirrorEngine) SyncTracks(
	ctx context.Context,
	remote Remote,
	playlist *models.Playlist,
	prog chan<- ProgressUpdate,
) (*TrackSyncResult, error) {
	if playlist == nil || playlist.ID == "" {
		return nil, fmt.Errorf("%w: playlist is required", shared.ErrInvalidInput)
	}

	unlock := e.locks.Lock(playlist.ID)
	defer unlock()

	logger := shared.WithLogger(e.logger, "playlist", playlist.ExternalID)
	e.sendProgress(prog, fetchTracksUpdate(1, 1, playlist.Name))

	items, err := remote.PlaylistTracks(ctx, playlist.ExternalID).Collect()
	if err != nil {
		return nil, &SyncError{Playlist: playlist.ExternalID, Reason: PartialPagination, Err: err}
	}

	res := &TrackSyncResult{}
	seen := make(map[string]bool, len(items))
	incoming := make([]services.SpotifyTrack, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			res.Skipped++
			name := ""
			if item.Track != nil {
				name = item.Track.Name
			}
			logger.Warn("skipping track", "name", name, "error", shared.ErrMissingExternalID)
			continue
		}
		if seen[item.Track.ID] {
			continue
		}
		seen[item.Track.ID] = true
		incoming = append(incoming, *item.Track)
	}
	res.Total = len(incoming)

	current, err := e.store.Memberships.TrackIDsByExternalID(ctx, playlist.ID)
	if err != nil {
		return nil, err
	}

	var stale []string
	for externalID, trackID := range current {
		if !seen[externalID] {
			stale = append(stale, trackID)
		}
	}

	var added []services.SpotifyTrack
	for _, t := range incoming {
		if _, ok := current[t.ID]; !ok {
			added = append(added, t)
		}
	}

	if len(stale) == 0 && len(added) == 0 {
		logger.Debug("playlist unchanged", "tracks", res.Total)
		e.sendProgress(prog, syncDoneUpdate(playlist, res))
		return res, nil
	}

	genres, err := e.resolveGenres(ctx, remote, added, prog)
	if err != nil {
		return nil, err
	}

	e.sendProgress(prog, reconcileUpdate(1, 1, len(added), len(stale)))
	err = e.store.InTx(ctx, func(tx *repositories.Repos) error {
		removed, err := tx.Memberships.Remove(ctx, playlist.ID, stale...)
		if err != nil {
			return err
		}
		res.Removed = int(removed)

		for _, t := range added {
			genre, ok := genres[t.ID]
			if !ok {
				genre = models.UnknownGenre
			}
			track, created, err := getOrCreateTrack(ctx, tx, t, genre)
			if err != nil {
				return err
			}
			if created {
				res.Created++
			}

			inserted, err := tx.Memberships.Add(ctx, playlist.ID, track.ID)
			if err != nil {
				return err
			}
			if inserted {
				res.Added++
			}
		}
		return nil
	})
	if err != nil {
		return nil, &SyncError{Playlist: playlist.ExternalID, Reason: PersistFailed, Err: err}
	}

	logger.Info("synced tracks", "total", res.Total, "added", res.Added, "removed", res.Removed, "created", res.Created, "skipped", res.Skipped)
	e.sendProgress(prog, syncDoneUpdate(playlist, res))
	return res, nil
}

// resolveGenres looks up a genre for every track in added that is not mirrored yet.
func (e *MirrorEngine) resolveGenres(
	ctx context.Context,
	remote Remote,
	added []services.SpotifyTrack,
	prog chan<- ProgressUpdate,
) (map[string]string, error) {
	ids := make([]string, 0, len(added))
	for _, t := range added {
		ids = append(ids, t.ID)
	}

	existing, err := e.store.Tracks.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var fresh []services.SpotifyTrack
	for _, t := range added {
		if !existing[t.ID] {
			fresh = append(fresh, t)
		}
	}

	enricher := NewGenreEnricher(remote, e.logger)
	genres := make(map[string]string, len(fresh))
	for i, t := range fresh {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.sendProgress(prog, resolveGenreUpdate(i+1, len(fresh), t.Name))
		genres[t.ID] = enricher.ResolveGenre(ctx, t.PrimaryArtistID())
	}
	return genres, nil
}

// getOrCreateTrack returns the mirrored track for t, inserting it with genre when absent.
func getOrCreateTrack(ctx context.Context, tx *repositories.Repos, t services.SpotifyTrack, genre string) (*models.Track, bool, error) {
	existing, err := tx.Tracks.GetByExternalID(ctx, t.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrTrackNotFound) {
		return nil, false, err
	}

	track := &models.Track{
		ExternalID:    t.ID,
		Name:          t.Name,
		AlbumName:     t.Album.Name,
		ArtistNames:   t.ArtistNames(),
		CoverImageURL: t.CoverURL(),
		Genre:         sql.NullString{String: genre, Valid: true},
	}
	if err := tx.Tracks.Create(ctx, track); err != nil {
		return nil, false, err
	}
	return track, true, nil
}

// AddTrack appends the track with externalID to the remote playlist and re-syncs it.
func (e *MirrorEngine) AddTrack(ctx context.Context, remote Editor, playlist *models.Playlist, externalID string) (*TrackSyncResult, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}

	track := models.Track{ExternalID: externalID}
	if err := remote.AddTracks(ctx, playlist.ExternalID, []string{track.URI()}); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return e.SyncTracks(ctx, remote, playlist, nil)
}

// RemoveTrack deletes track from the remote playlist and re-syncs, which drops the local membership.
func (e *MirrorEngine) RemoveTrack(ctx context.Context, remote Editor, playlist *models.Playlist, track *models.Track) (*TrackSyncResult, error) {
	if track == nil {
		return nil, fmt.Errorf("%w: track is required", shared.ErrMissingArgument)
	}

	if err := remote.RemoveTracks(ctx, playlist.ExternalID, []string{track.URI()}); err != nil {
		return nil, fmt.Errorf("failed to remove track: %w", err)
	}
	return e.SyncTracks(ctx, remote, playlist, nil)
}
