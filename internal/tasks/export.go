package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunemirror/internal/formatter"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
)

// ExportOpts contains configuration for playlist exports.
type ExportOpts struct {
	Format     string                 // csv, markdown or txt
	OutputDir  string                 // Base output directory (default: tunemirror_export_{epoch})
	Sort       repositories.TrackSort // Track order inside each file
	NumWorkers int                    // Concurrent workers (default: 4)
	RateLimit  float64                // Cover downloads per second (default: 5)
	Covers     bool                   // Download cover images for markdown exports

	// FetchImage overrides the cover downloader.
	FetchImage func(ctx context.Context, url string) ([]byte, error)
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	OutputDirectory string
	ManifestPath    string
	Manifest        formatter.Manifest
}

type exportJob struct {
	playlist models.Playlist
}

// Export writes each playlist and its mirrored tracks to opts.OutputDir using a worker pool.
//
// Individual failures are recorded in the manifest and do not stop the run.
func (e *MirrorEngine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	playlists []models.Playlist,
	opts ExportOpts,
) (*ExportResult, error) {
	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("tunemirror_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	opts.NumWorkers = min(opts.NumWorkers, 10, max(len(playlists), 1))
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.FetchImage == nil {
		opts.FetchImage = formatter.DownloadImage
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob, len(playlists))
	results := make(chan formatter.ManifestEntry, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- formatter.ManifestEntry{PlaylistID: job.playlist.ExternalID, Name: job.playlist.Name, Error: ctx.Err().Error()}
					continue
				}
				results <- e.exportOne(ctx, limiter, job.playlist, opts)
			}
		}()
	}

	for _, pl := range playlists {
		jobs <- exportJob{playlist: pl}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &ExportResult{
		OutputDirectory: opts.OutputDir,
		Manifest: formatter.Manifest{
			Format:     opts.Format,
			ExportedAt: time.Now().UTC(),
			Total:      len(playlists),
			Playlists:  make([]formatter.ManifestEntry, 0, len(playlists)),
		},
	}

	completed := 0
	for entry := range results {
		completed++
		result.Manifest.Playlists = append(result.Manifest.Playlists, entry)
		if entry.Error == "" {
			result.Manifest.Successful++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(playlists), entry.Name, len(entry.Files)))
		} else {
			result.Manifest.Failed++
			e.sendProgress(prog, exportFailedUpdate(completed, len(playlists), entry.Name, errors.New(entry.Error)))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(&result.Manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportOne writes a single playlist in the requested format.
func (e *MirrorEngine) exportOne(ctx context.Context, limiter *rate.Limiter, pl models.Playlist, opts ExportOpts) formatter.ManifestEntry {
	entry := formatter.ManifestEntry{PlaylistID: pl.ExternalID, Name: pl.Name}

	tracks, err := e.store.Tracks.ListByPlaylist(ctx, pl.ID, opts.Sort)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	export := &formatter.Export{Playlist: pl, Tracks: tracks}

	switch opts.Format {
	case formatter.FormatMarkdown:
		var image []byte
		if opts.Covers && pl.CoverImageURL != "" {
			if err := limiter.Wait(ctx); err == nil {
				image, err = opts.FetchImage(ctx, pl.CoverImageURL)
				if err != nil {
					e.logger.Warn("failed to download cover image", "playlist", pl.ExternalID, "error", err)
				}
			}
		}

		res, err := formatter.WriteMarkdownExport(export, filepath.Join(opts.OutputDir, pl.ExternalID), image)
		if err != nil {
			entry.Error = fmt.Sprintf("markdown export failed: %v", err)
			return entry
		}
		entry.Files = res.Files
	case formatter.FormatText:
		path, err := formatter.WriteTextExport(export, filepath.Join(opts.OutputDir, pl.ExternalID+"_tracks.txt"))
		if err != nil {
			entry.Error = fmt.Sprintf("text export failed: %v", err)
			return entry
		}
		entry.Files = []string{path}
	default:
		res, err := formatter.WriteCSVExport(export, filepath.Join(opts.OutputDir, pl.ExternalID))
		if err != nil {
			entry.Error = fmt.Sprintf("CSV export failed: %v", err)
			return entry
		}
		entry.Files = []string{res.TracksFile, res.MetadataFile}
	}
	return entry
}
