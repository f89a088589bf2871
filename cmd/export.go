package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// Export writes mirrored playlists to disk along with a manifest.json summary.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")
	if len(ids) == 0 && !cmd.Bool("all") {
		return fmt.Errorf("%w: pass --id or --all", shared.ErrMissingArgument)
	}

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

	var playlists []models.Playlist
	if cmd.Bool("all") {
		if playlists, err = e.store.Playlists.ListByOwner(ctx, acct.user.ID); err != nil {
			return err
		}
	} else {
		for _, id := range ids {
			pl, err := ownedPlaylist(ctx, e, acct.user, id)
			if err != nil {
				return err
			}
			playlists = append(playlists, *pl)
		}
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists to export\n")
	}

	r.logger.Info("exporting playlists", "count", len(playlists), "format", cmd.String("format"))

	progress, stop := r.watchProgress()
	result, err := e.engine.Export(ctx, progress, playlists, tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		Sort:       sort,
		NumWorkers: cmd.Int("workers"),
		Covers:     cmd.Bool("covers"),
	})
	stop()
	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlainln("Export complete: %d/%d playlists (%s)", m.Successful, m.Total, m.Format)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	if m.Failed > 0 {
		r.writePlain("\nFailed to export %d playlists:\n", m.Failed)
		for _, entry := range m.Playlists {
			if entry.Error != "" {
				r.writePlain("  - %s: %s\n", entry.Name, entry.Error)
			}
		}
	}
	return nil
}
