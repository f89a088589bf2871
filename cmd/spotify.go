package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// watchProgress prints engine updates until the returned stop func is called.
func (r *Runner) watchProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchTracks:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ResolveGenres:
				r.writePlain("   %s\n", update.Message)
			case tasks.Reconcile:
				r.writePlain("🔄 %s\n", update.Message)
			case tasks.ExportPlaylist:
				r.writePlain("📝 [%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

// SyncPlaylists mirrors the playlists visible to the signed-in user.
func (r *Runner) SyncPlaylists(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	r.logger.Info("syncing playlists", "user", acct.user.ExternalID)
	playlists, err := e.engine.SyncPlaylists(ctx, acct.client, acct.user)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("✓ Mirrored %d owned playlists\n", len(playlists))
	r.printPlaylists(playlists)
	return nil
}

// SyncTracks mirrors the tracks of the playlist named by --id, or of every owned playlist with --all.
func (r *Runner) SyncTracks(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	var playlists []models.Playlist
	switch {
	case cmd.Bool("all"):
		if playlists, err = e.store.Playlists.ListByOwner(ctx, acct.user.ID); err != nil {
			return err
		}
		if len(playlists) == 0 {
			return r.writePlain("No playlists mirrored yet. Run 'tunemirror sync playlists' first\n")
		}
	default:
		pl, err := ownedPlaylist(ctx, e, acct.user, cmd.String("id"))
		if err != nil {
			return err
		}
		playlists = []models.Playlist{*pl}
	}

	var failed int
	for i := range playlists {
		pl := &playlists[i]
		progress, stop := r.watchProgress()
		res, err := e.engine.SyncTracks(ctx, acct.client, pl, progress)
		stop()

		if err != nil {
			if len(playlists) == 1 {
				return err
			}
			failed++
			r.logger.Error("sync failed", "playlist", pl.Name, "error", err)
			r.writePlain("✗ %s: %v\n\n", pl.Name, err)
			continue
		}
		r.writePlain("✓ %s: %d tracks (+%d -%d, %d new, %d skipped)\n\n",
			pl.Name, res.Total, res.Added, res.Removed, res.Created, res.Skipped)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d playlists failed to sync", failed, len(playlists))
	}
	return nil
}

// Playlists lists the mirrored playlists owned by the signed-in user.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	playlists, err := e.store.Playlists.ListByOwner(ctx, acct.user.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	r.printPlaylists(playlists)
	return nil
}

func (r *Runner) printPlaylists(playlists []models.Playlist) {
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s (spotify: %s)\n", p.ID, p.ExternalID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("\n")
	}
}

// Tracks lists the mirrored tracks of one playlist in the requested order.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	sort, err := repositories.ParseTrackSort(cmd.String("sort"))
	if err != nil {
		return err
	}

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	pl, err := ownedPlaylist(ctx, e, acct.user, cmd.String("id"))
	if err != nil {
		return err
	}

	tracks, err := e.store.Tracks.ListByPlaylist(ctx, pl.ID, sort)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d tracks)", pl.Name, len(tracks)))
	for i, t := range tracks {
		r.writePlain("%3d. %s - %s\n", i+1, t.Artists(), t.Name)
		r.writePlain("     %s • %s • %s\n", t.AlbumName, t.GenreOrUnknown(), t.ExternalID)
	}
	return nil
}

// TracksAdd adds a Spotify track to a playlist, then resyncs the playlist.
func (r *Runner) TracksAdd(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	pl, err := ownedPlaylist(ctx, e, acct.user, cmd.String("id"))
	if err != nil {
		return err
	}

	res, err := e.engine.AddTrack(ctx, acct.client, pl, cmd.String("track"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added to %s (%d tracks)\n", pl.Name, res.Total)
}

// TracksRemove removes a track from a playlist remotely and locally, then resyncs the playlist.
func (r *Runner) TracksRemove(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	pl, err := ownedPlaylist(ctx, e, acct.user, cmd.String("id"))
	if err != nil {
		return err
	}

	id := cmd.String("track")
	track, err := e.store.Tracks.Get(ctx, id)
	if errors.Is(err, shared.ErrTrackNotFound) {
		track, err = e.store.Tracks.GetByExternalID(ctx, id)
	}
	if err != nil {
		return err
	}

	res, err := e.engine.RemoveTrack(ctx, acct.client, pl, track)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from %s (%d tracks)\n", track.Name, pl.Name, res.Total)
}

// Search queries the Spotify catalog.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	r.logger.Debug("searching", "query", query, "types", cmd.StringSlice("type"))
	res, err := acct.client.Search(ctx, query, cmd.StringSlice("type"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	if len(res.Tracks.Items) > 0 {
		r.writePlainHeader("Tracks")
		r.printTracks(res.Tracks.Items)
	}
	if len(res.Artists.Items) > 0 {
		r.writePlainHeader("Artists")
		for i, a := range res.Artists.Items {
			r.writePlain("%2d. %s", i+1, a.Name)
			if len(a.Genres) > 0 {
				r.writePlain(" (%s)", strings.Join(a.Genres, ", "))
			}
			r.writePlain("\n    ID: %s\n", a.ID)
		}
	}
	if len(res.Albums.Items) > 0 {
		r.writePlainHeader("Albums")
		for i, a := range res.Albums.Items {
			artists := make([]string, 0, len(a.Artists))
			for _, ar := range a.Artists {
				artists = append(artists, ar.Name)
			}
			r.writePlain("%2d. %s - %s (%s)\n", i+1, strings.Join(artists, ", "), a.Name, a.ReleaseDate)
		}
	}
	return nil
}

// Recommend prints recommendations from a seed, or the user's top or recently played tracks.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("top") && !cmd.Bool("recent") && cmd.String("value") == "" {
		return fmt.Errorf("%w: --value is required with --seed", shared.ErrMissingArgument)
	}

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := r.signedIn(ctx, e)
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	var (
		title  string
		tracks []services.SpotifyTrack
	)
	switch {
	case cmd.Bool("top"):
		title = "Your top tracks"
		tracks, err = acct.client.TopTracks(ctx, limit)
	case cmd.Bool("recent"):
		title = "Recently played"
		var plays []services.SpotifyPlayHistory
		plays, err = acct.client.RecentlyPlayed(ctx, limit)
		for _, p := range plays {
			tracks = append(tracks, p.Track)
		}
	default:
		title = fmt.Sprintf("Recommended for %s %q", cmd.String("seed"), cmd.String("value"))
		tracks, err = acct.client.Recommendations(ctx, cmd.String("seed"), cmd.String("value"), limit)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(title)
	r.printTracks(tracks)
	return nil
}

func (r *Runner) printTracks(tracks []services.SpotifyTrack) {
	if len(tracks) == 0 {
		r.writePlain("No tracks found\n")
		return
	}
	for i, t := range tracks {
		r.writePlain("%2d. %s - %s\n", i+1, strings.Join(t.ArtistNames(), ", "), t.Name)
		r.writePlain("    %s • %s\n", t.Album.Name, t.ID)
	}
}
