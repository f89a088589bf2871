package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// DefaultPageSize is the largest page the playlist tracks endpoint serves.
	DefaultPageSize = 100
	// PlaylistPageSize is the largest page the user playlists endpoint serves.
	PlaylistPageSize = 50
	// DefaultMarket scopes market-dependent artist lookups.
	DefaultMarket = "US"
)

// ClientOpts configures a [SpotifyClient].
type ClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *log.Logger
}

// SpotifyClient performs authenticated calls against the Spotify Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	creds      session.CredentialStore
}

// NewLimiter builds the request limiter shared by every session's client.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func NewSpotifyClient(opts ClientOpts) *SpotifyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(0, 0)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// WithCredentials returns a client that authorizes requests with the token held by creds.
func (c *SpotifyClient) WithCredentials(creds session.CredentialStore) *SpotifyClient {
	bound := *c
	bound.creds = creds
	return &bound
}

// Request performs one authenticated call and returns the raw JSON body.
//
// endpoint is either a path relative to the API base URL or an absolute URL.
// body, when non-nil, is sent as JSON. Any non-2xx status is an [*APIError].
func (c *SpotifyClient) Request(ctx context.Context, method, endpoint string, params url.Values, body any) (json.RawMessage, error) {
	if c.creds == nil {
		return nil, shared.ErrNotAuthenticated
	}
	cred, ok := c.creds.Get()
	if !ok || cred.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}

	target, err := c.resolve(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("spotify request", "method", method, "url", req.URL.Path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// resolve joins endpoint to the base URL and merges params into its query.
func (c *SpotifyClient) resolve(endpoint string, params url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// getJSON performs a request and decodes the response into T.
func getJSON[T any](ctx context.Context, c *SpotifyClient, method, endpoint string, params url.Values, body any) (*T, error) {
	raw, err := c.Request(ctx, method, endpoint, params, body)
	if err != nil {
		return nil, err
	}
	var out T
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	return getJSON[SpotifyUser](ctx, c, http.MethodGet, "/me", nil, nil)
}

// UserPlaylists pages through the current user's playlists.
func (c *SpotifyClient) UserPlaylists(ctx context.Context) *Pager[SpotifySimplePlaylist] {
	return Paginate[SpotifySimplePlaylist](ctx, c, "/me/playlists", nil, PlaylistPageSize)
}

// PlaylistTracks pages through the items of a playlist.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) *Pager[SpotifyPlaylistTrack] {
	return Paginate[SpotifyPlaylistTrack](ctx, c, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, DefaultPageSize)
}

// Artist retrieves an artist by ID.
func (c *SpotifyClient) Artist(ctx context.Context, artistID string) (*SpotifyArtist, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	return getJSON[SpotifyArtist](ctx, c, http.MethodGet, "/artists/"+url.PathEscape(artistID), nil, nil)
}

// ArtistTopTracks returns an artist's most popular tracks in market.
func (c *SpotifyClient) ArtistTopTracks(ctx context.Context, artistID, market string) ([]SpotifyTrack, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	if market == "" {
		market = DefaultMarket
	}

	params := url.Values{"market": {market}}
	res, err := getJSON[topTracks](ctx, c, http.MethodGet, "/artists/"+url.PathEscape(artistID)+"/top-tracks", params, nil)
	if err != nil {
		return nil, err
	}
	return res.Tracks, nil
}

type topTracks struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// ArtistAlbums returns the first page of an artist's full-length albums.
func (c *SpotifyClient) ArtistAlbums(ctx context.Context, artistID string, limit int) ([]SpotifyAlbum, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	params := limitParams(limit, 10)
	params.Set("include_groups", "album")
	params.Set("market", DefaultMarket)
	res, err := getJSON[Page[SpotifyAlbum]](ctx, c, http.MethodGet, "/artists/"+url.PathEscape(artistID)+"/albums", params, nil)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Album retrieves an album and its tracks.
func (c *SpotifyClient) Album(ctx context.Context, albumID string) (*SpotifyFullAlbum, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}
	return getJSON[SpotifyFullAlbum](ctx, c, http.MethodGet, "/albums/"+url.PathEscape(albumID), nil, nil)
}

// Search queries the catalog for the given types (album, artist, track).
func (c *SpotifyClient) Search(ctx context.Context, query string, types []string, limit int) (*SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if len(types) == 0 {
		types = []string{"album", "artist", "track"}
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"q":     {query},
		"type":  {strings.Join(types, ",")},
		"limit": {strconv.Itoa(limit)},
	}
	return getJSON[SearchResults](ctx, c, http.MethodGet, "/search", params, nil)
}

// LookupID returns the id of the best catalog match for query of the given kind (artist or track).
func (c *SpotifyClient) LookupID(ctx context.Context, query, kind string) (string, error) {
	res, err := c.Search(ctx, query, []string{kind}, 1)
	if err != nil {
		return "", err
	}

	switch kind {
	case "artist":
		if len(res.Artists.Items) > 0 {
			return res.Artists.Items[0].ID, nil
		}
	case "track":
		if len(res.Tracks.Items) > 0 {
			return res.Tracks.Items[0].ID, nil
		}
	default:
		return "", fmt.Errorf("%w: lookup kind %q", shared.ErrInvalidArgument, kind)
	}
	return "", fmt.Errorf("%w: no %s matches %q", shared.ErrTrackNotFound, kind, query)
}

// Recommendations returns tracks seeded by a genre, artist or track.
//
// Artist and track seeds are given by name and resolved to ids first.
func (c *SpotifyClient) Recommendations(ctx context.Context, seedType, value string, limit int) ([]SpotifyTrack, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: seed value", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{"limit": {strconv.Itoa(limit)}}
	switch seedType {
	case "genre":
		params.Set("seed_genres", value)
	case "artist", "track":
		id, err := c.LookupID(ctx, value, seedType)
		if err != nil {
			return nil, err
		}
		params.Set("seed_"+seedType+"s", id)
	default:
		return nil, fmt.Errorf("%w: seed type %q", shared.ErrInvalidArgument, seedType)
	}

	res, err := getJSON[recommendations](ctx, c, http.MethodGet, "/recommendations", params, nil)
	if err != nil {
		return nil, err
	}
	return res.Tracks, nil
}

type recommendations struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// AddTracks appends track URIs to a playlist.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: track uris", shared.ErrMissingArgument)
	}
	body := map[string][]string{"uris": uris}
	_, err := c.Request(ctx, http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body)
	return err
}

// RemoveTracks removes every occurrence of the given track URIs from a playlist.
func (c *SpotifyClient) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: track uris", shared.ErrMissingArgument)
	}

	type trackRef struct {
		URI string `json:"uri"`
	}
	refs := make([]trackRef, 0, len(uris))
	for _, u := range uris {
		refs = append(refs, trackRef{URI: u})
	}

	body := map[string][]trackRef{"tracks": refs}
	_, err := c.Request(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body)
	return err
}

// TopTracks returns the user's most played tracks.
func (c *SpotifyClient) TopTracks(ctx context.Context, limit int) ([]SpotifyTrack, error) {
	res, err := getJSON[Page[SpotifyTrack]](ctx, c, http.MethodGet, "/me/top/tracks", limitParams(limit, 20), nil)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// RecentlyPlayed returns the user's most recently played tracks.
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, limit int) ([]SpotifyPlayHistory, error) {
	res, err := getJSON[Page[SpotifyPlayHistory]](ctx, c, http.MethodGet, "/me/player/recently-played", limitParams(limit, 20), nil)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func limitParams(limit, fallback int) url.Values {
	if limit <= 0 {
		limit = fallback
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}
