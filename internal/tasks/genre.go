package tasks

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/services"
)

// ArtistFetcher looks up a single artist.
type ArtistFetcher interface {
	Artist(ctx context.Context, artistID string) (*services.SpotifyArtist, error)
}

// GenreEnricher derives a track's genre label from its primary artist.
type GenreEnricher struct {
	artists ArtistFetcher
	logger  *log.Logger
}

func NewGenreEnricher(artists ArtistFetcher, logger *log.Logger) *GenreEnricher {
	if logger == nil {
		logger = log.Default()
	}
	return &GenreEnricher{artists: artists, logger: logger}
}

// ResolveGenre returns the artist's genres joined with ", ".
//
// It never fails: a missing id, a failed lookup or an artist without genres all yield [models.UnknownGenre].
func (g *GenreEnricher) ResolveGenre(ctx context.Context, artistID string) string {
	if artistID == "" || g.artists == nil {
		return models.UnknownGenre
	}

	artist, err := g.artists.Artist(ctx, artistID)
	if err != nil {
		g.logger.Debug("genre lookup failed", "artist", artistID, "error", err)
		return models.UnknownGenre
	}
	if artist == nil || len(artist.Genres) == 0 {
		return models.UnknownGenre
	}
	return strings.Join(artist.Genres, ", ")
}
