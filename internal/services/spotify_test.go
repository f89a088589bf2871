package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
	tu "github.com/desertthunder/tunemirror/internal/testing"
)

func newTestClient(t *testing.T, h http.Handler) (*SpotifyClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := NewSpotifyClient(ClientOpts{
		BaseURL: srv.URL,
		Logger:  shared.NewLogger(io.Discard),
	})
	creds := session.NewMemoryCredentials(&models.Credential{
		AccessToken: "test-token", ExpiresIn: 3600, AcquiredAt: time.Now(),
	})
	return client.WithCredentials(creds), srv
}

func TestRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches bearer token", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("Authorization = %q", got)
			}
			io.WriteString(w, `{"id":"me"}`)
		}))

		raw, err := client.Request(ctx, http.MethodGet, "/me", nil, nil)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if !strings.Contains(string(raw), `"me"`) {
			t.Errorf("unexpected body %s", raw)
		}
	})

	t.Run("non-2xx yields APIError without retry", func(t *testing.T) {
		var hits atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"status":429,"message":"API rate limit exceeded"}}`)
		}))

		_, err := client.Request(ctx, http.MethodGet, "/me", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T %v", err, err)
		}
		if apiErr.Status != http.StatusTooManyRequests {
			t.Errorf("status = %d", apiErr.Status)
		}
		if apiErr.Message != "API rate limit exceeded" {
			t.Errorf("message = %q", apiErr.Message)
		}
		if apiErr.RetryAfter != 7*time.Second {
			t.Errorf("retry after = %v", apiErr.RetryAfter)
		}
		if !strings.Contains(string(apiErr.Body), "rate limit") {
			t.Errorf("body not kept: %s", apiErr.Body)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Error("APIError should match ErrAPIRequest")
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})

	t.Run("without credentials", func(t *testing.T) {
		client := NewSpotifyClient(ClientOpts{Logger: shared.NewLogger(io.Discard)})
		if _, err := client.Request(ctx, http.MethodGet, "/me", nil, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		bound := client.WithCredentials(session.NewMemoryCredentials(nil))
		if _, err := bound.Request(ctx, http.MethodGet, "/me", nil, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated for empty store, got %v", err)
		}
	})

	t.Run("absolute URLs are used as-is", func(t *testing.T) {
		client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/next" || r.URL.Query().Get("offset") != "100" {
				t.Errorf("unexpected request %s", r.URL)
			}
			io.WriteString(w, `{}`)
		}))

		if _, err := client.Request(ctx, http.MethodGet, srv.URL+"/v1/next?offset=100", nil, nil); err != nil {
			t.Fatalf("Request failed: %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := NewSpotifyClient(ClientOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
			Logger:     shared.NewLogger(io.Discard),
		}).WithCredentials(session.NewMemoryCredentials(&models.Credential{AccessToken: "t"}))

		_, err := client.Request(ctx, http.MethodGet, "/me", nil, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("body read failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
		client := NewSpotifyClient(ClientOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
			Logger:     shared.NewLogger(io.Discard),
		}).WithCredentials(session.NewMemoryCredentials(&models.Credential{AccessToken: "t"}))

		if _, err := client.Request(ctx, http.MethodGet, "/me", nil, nil); err == nil {
			t.Error("expected read error")
		}
	})
}

// pagedHandler serves total items split into pages of pageSize, mimicking the Spotify envelope.
func pagedHandler(t *testing.T, total int, offsets *[]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		*offsets = append(*offsets, offset)

		end := min(offset+limit, total)
		page := Page[SpotifyPlaylistTrack]{Limit: limit, Offset: offset, Total: total}
		for i := offset; i < end; i++ {
			page.Items = append(page.Items, SpotifyPlaylistTrack{Track: &SpotifyTrack{ID: fmt.Sprintf("t%d", i)}})
		}
		if end < total {
			next := fmt.Sprintf("http://%s%s?offset=%d&limit=%d", r.Host, r.URL.Path, end, limit)
			page.Next = &next
		}

		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("failed to encode page: %v", err)
		}
	}
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()

	t.Run("exhausts 100/100/37 pages", func(t *testing.T) {
		var offsets []int
		client, _ := newTestClient(t, pagedHandler(t, 237, &offsets))

		pager := client.PlaylistTracks(ctx, "p1")
		items, err := pager.Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}

		if len(items) != 237 {
			t.Errorf("expected 237 items, got %d", len(items))
		}
		if pager.Pages() != 3 {
			t.Errorf("expected 3 pages, got %d", pager.Pages())
		}
		if fmt.Sprint(offsets) != "[0 100 200]" {
			t.Errorf("unexpected offsets %v", offsets)
		}
		if items[236].Track.ID != "t236" {
			t.Errorf("unexpected last item %+v", items[236].Track)
		}
	})

	t.Run("is lazy", func(t *testing.T) {
		var offsets []int
		client, _ := newTestClient(t, pagedHandler(t, 237, &offsets))

		for item, err := range client.PlaylistTracks(ctx, "p1").All() {
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if item.Track.ID == "t5" {
				break
			}
		}
		if len(offsets) != 1 {
			t.Errorf("expected a single page fetched, got %v", offsets)
		}
	})

	t.Run("is one-shot", func(t *testing.T) {
		var offsets []int
		client, _ := newTestClient(t, pagedHandler(t, 10, &offsets))

		pager := client.PlaylistTracks(ctx, "p1")
		if _, err := pager.Collect(); err != nil {
			t.Fatalf("first Collect failed: %v", err)
		}
		if _, err := pager.Collect(); !errors.Is(err, shared.ErrPagerConsumed) {
			t.Errorf("expected ErrPagerConsumed, got %v", err)
		}
	})

	t.Run("failed page aborts", func(t *testing.T) {
		var offsets []int
		ok := pagedHandler(t, 237, &offsets)
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "100" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			ok(w, r)
		}))

		items, err := client.PlaylistTracks(ctx, "p1").Collect()
		if items != nil {
			t.Errorf("expected no items, got %d", len(items))
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
			t.Errorf("expected 502 APIError, got %v", err)
		}
	})

	t.Run("user playlists use the smaller page size", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" || r.URL.Query().Get("limit") != "50" {
				t.Errorf("unexpected request %s", r.URL)
			}
			io.WriteString(w, `{"items":[{"id":"p1","name":"Mix","tracks":{"total":4},"images":[{"url":"http://img/1"}]}],"next":null}`)
		}))

		items, err := client.UserPlaylists(ctx).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(items) != 1 || items[0].Tracks.Total != 4 || items[0].CoverURL() != "http://img/1" {
			t.Errorf("unexpected playlists %+v", items)
		}
	})
}

func TestEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("CurrentUser", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"id":"u1","display_name":"Ada","email":"ada@example.com","images":[{"url":"http://img/a"}]}`)
		}))

		user, err := client.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("CurrentUser failed: %v", err)
		}
		if user.ID != "u1" || user.AvatarURL() != "http://img/a" {
			t.Errorf("unexpected user %+v", user)
		}
	})

	t.Run("Artist", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/artists/a1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			io.WriteString(w, `{"id":"a1","name":"Daft Punk","genres":["french house","electro"]}`)
		}))

		artist, err := client.Artist(ctx, "a1")
		if err != nil {
			t.Fatalf("Artist failed: %v", err)
		}
		if len(artist.Genres) != 2 {
			t.Errorf("unexpected genres %v", artist.Genres)
		}

		if _, err := client.Artist(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("q") != "daft punk" || q.Get("type") != "album,artist,track" || q.Get("limit") != "10" {
				t.Errorf("unexpected query %v", q)
			}
			io.WriteString(w, `{"tracks":{"items":[{"id":"t1","name":"One More Time"}]},"artists":{"items":[{"id":"a1"}]},"albums":{"items":[]}}`)
		}))

		res, err := client.Search(ctx, "daft punk", nil, 0)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(res.Tracks.Items) != 1 || len(res.Artists.Items) != 1 {
			t.Errorf("unexpected results %+v", res)
		}

		if _, err := client.Search(ctx, "  ", nil, 0); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Recommendations resolve artist seeds", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/search":
				if r.URL.Query().Get("type") != "artist" || r.URL.Query().Get("limit") != "1" {
					t.Errorf("unexpected lookup %v", r.URL.Query())
				}
				io.WriteString(w, `{"artists":{"items":[{"id":"a42"}]}}`)
			case "/recommendations":
				if r.URL.Query().Get("seed_artists") != "a42" {
					t.Errorf("seed_artists = %q", r.URL.Query().Get("seed_artists"))
				}
				io.WriteString(w, `{"tracks":[{"id":"t1"},{"id":"t2"}]}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		tracks, err := client.Recommendations(ctx, "artist", "Daft Punk", 0)
		if err != nil {
			t.Fatalf("Recommendations failed: %v", err)
		}
		if len(tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(tracks))
		}

		if _, err := client.Recommendations(ctx, "mood", "happy", 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("LookupID without matches", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"tracks":{"items":[]}}`)
		}))

		if _, err := client.LookupID(ctx, "nothing", "track"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("AddTracks and RemoveTracks", func(t *testing.T) {
		var bodies []string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/p1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("missing json content type")
			}
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, r.Method+" "+string(b))
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusCreated)
			}
			io.WriteString(w, `{"snapshot_id":"s"}`)
		}))

		if err := client.AddTracks(ctx, "p1", []string{"spotify:track:t1"}); err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}
		if err := client.RemoveTracks(ctx, "p1", []string{"spotify:track:t1"}); err != nil {
			t.Fatalf("RemoveTracks failed: %v", err)
		}

		want := []string{
			`POST {"uris":["spotify:track:t1"]}`,
			`DELETE {"tracks":[{"uri":"spotify:track:t1"}]}`,
		}
		for i, w := range want {
			if bodies[i] != w {
				t.Errorf("request %d = %s, want %s", i, bodies[i], w)
			}
		}

		if err := client.AddTracks(ctx, "p1", nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Album", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums/al1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			io.WriteString(w, `{"id":"al1","name":"Discovery","release_date":"2001-03-12","label":"Virgin",
				"images":[{"url":"http://img/al1"}],
				"tracks":{"items":[{"id":"t1","name":"One More Time","artists":[{"id":"a1","name":"Daft Punk"}]}],"total":1}}`)
		}))

		album, err := client.Album(ctx, "al1")
		if err != nil {
			t.Fatalf("Album failed: %v", err)
		}
		if album.Name != "Discovery" || album.ImageURL() != "http://img/al1" || album.Label != "Virgin" {
			t.Errorf("unexpected album %+v", album)
		}
		if len(album.Tracks.Items) != 1 || album.Tracks.Items[0].ArtistNames()[0] != "Daft Punk" {
			t.Errorf("unexpected album tracks %+v", album.Tracks.Items)
		}

		if _, err := client.Album(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("ArtistTopTracks and ArtistAlbums", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("market") != "US" {
				t.Errorf("market = %q", q.Get("market"))
			}
			switch r.URL.Path {
			case "/artists/a1/top-tracks":
				io.WriteString(w, `{"tracks":[{"id":"t1"},{"id":"t2"}]}`)
			case "/artists/a1/albums":
				if q.Get("include_groups") != "album" || q.Get("limit") != "10" {
					t.Errorf("unexpected album query %s", r.URL.RawQuery)
				}
				io.WriteString(w, `{"items":[{"id":"al1","name":"Discovery"}],"total":1}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		top, err := client.ArtistTopTracks(ctx, "a1", "")
		if err != nil || len(top) != 2 {
			t.Fatalf("ArtistTopTracks = %v, %v", top, err)
		}
		albums, err := client.ArtistAlbums(ctx, "a1", 0)
		if err != nil || len(albums) != 1 || albums[0].ID != "al1" {
			t.Fatalf("ArtistAlbums = %v, %v", albums, err)
		}

		if _, err := client.ArtistTopTracks(ctx, "", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := client.ArtistAlbums(ctx, "", 0); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("TopTracks and RecentlyPlayed", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "20" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			switch r.URL.Path {
			case "/me/top/tracks":
				io.WriteString(w, `{"items":[{"id":"t1"}]}`)
			case "/me/player/recently-played":
				io.WriteString(w, `{"items":[{"track":{"id":"t2"},"played_at":"2025-01-01T00:00:00Z"}]}`)
			}
		}))

		top, err := client.TopTracks(ctx, 0)
		if err != nil || len(top) != 1 {
			t.Fatalf("TopTracks = %v, %v", top, err)
		}
		recent, err := client.RecentlyPlayed(ctx, 0)
		if err != nil || len(recent) != 1 || recent[0].Track.ID != "t2" {
			t.Fatalf("RecentlyPlayed = %v, %v", recent, err)
		}
	})
}

func TestSpotifyTrack(t *testing.T) {
	track := SpotifyTrack{
		Artists: []SpotifyArtist{{ID: "a1", Name: "Daft Punk"}, {ID: "a2", Name: "Pharrell Williams"}},
		Album:   SpotifyAlbum{Images: []SpotifyImage{{URL: "http://img/cover"}}},
	}

	if got := strings.Join(track.ArtistNames(), ", "); got != "Daft Punk, Pharrell Williams" {
		t.Errorf("ArtistNames() = %q", got)
	}
	if track.PrimaryArtistID() != "a1" {
		t.Errorf("PrimaryArtistID() = %q", track.PrimaryArtistID())
	}
	if track.CoverURL() != "http://img/cover" {
		t.Errorf("CoverURL() = %q", track.CoverURL())
	}
	if (SpotifyTrack{}).PrimaryArtistID() != "" {
		t.Error("track without artists should have no primary artist")
	}
}
