package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

const (
	searchLimit  = 10
	historyLimit = 20
)

var trackSorts = []repositories.TrackSort{
	repositories.SortArtist,
	repositories.SortAlbum,
	repositories.SortName,
	repositories.SortGenre,
}

type profileData struct {
	Playlists int
	Tracks    int
}

type playlistData struct {
	Playlist models.Playlist
	Tracks   []models.Track
	Sort     repositories.TrackSort
	Sorts    []repositories.TrackSort
	Result   *tasks.TrackSyncResult
}

type searchData struct {
	Query     string
	Results   *services.SearchResults
	Playlists []models.Playlist
}

type recommendationData struct {
	Type      string
	Value     string
	Tracks    []services.SpotifyTrack
	Playlists []models.Playlist
}

type albumData struct {
	Album     *services.SpotifyFullAlbum
	Playlists []models.Playlist
}

type artistData struct {
	Artist    *services.SpotifyArtist
	TopTracks []services.SpotifyTrack
	Albums    []services.SpotifyAlbum
	Playlists []models.Playlist
}

type trackRow struct {
	Track    services.SpotifyTrack
	PlayedAt string
}

type trackListData struct {
	Rows      []trackRow
	Playlists []models.Playlist
}

func (s *Server) welcome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "welcome", page{Title: "Welcome"})
}

// login starts the PKCE authorization code flow.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	verifier, state := auth.NewVerifier(), auth.NewState()
	sess.Data.CodeVerifier = verifier
	sess.Data.State = state

	if err := s.saveSession(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, s.auth.AuthCodeURL(state, verifier), http.StatusFound)
}

// callback completes authorization and records the user.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		s.renderError(w, r, http.StatusBadRequest, "Authorization failed: "+errParam, nil)
		return
	}
	if q.Get("code") == "" {
		s.renderError(w, r, http.StatusBadRequest, "Authorization failed: no code provided", nil)
		return
	}
	if sess.Data.State == "" || q.Get("state") != sess.Data.State {
		s.renderError(w, r, http.StatusBadRequest, "Authorization failed: state mismatch", shared.ErrStateMismatch)
		return
	}

	cred, err := s.auth.Exchange(ctx, q.Get("code"), sess.Data.CodeVerifier)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Authorization failed: the code could not be exchanged", err)
		return
	}

	sess.Data.CodeVerifier, sess.Data.State = "", ""
	creds := session.NewSessionCredentials(s.sessions, sess)
	if err := creds.Set(ctx, cred); err != nil {
		s.fail(w, r, err)
		return
	}

	me, err := s.client(creds).CurrentUser(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, created, err := s.store.Users.GetOrCreate(ctx, &models.User{
		ExternalID:  me.ID,
		DisplayName: me.DisplayName,
		Email:       me.Email,
		AvatarURL:   me.AvatarURL(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if created {
		s.logger.Info("new user", "external_id", user.ExternalID)
	}

	sess.Data.UserID = user.ID
	if err := s.saveSession(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/user/profile", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess != nil {
		if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)

	playlists, err := s.store.Playlists.ListByOwner(ctx, user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := profileData{Playlists: len(playlists)}
	for _, p := range playlists {
		n, err := s.store.Memberships.Count(ctx, p.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		data.Tracks += n
	}
	s.render(w, r, http.StatusOK, "profile", page{Title: user.DisplayName, Data: data})
}

func (s *Server) playlists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlists, err := s.engine.SyncPlaylists(ctx, s.client(credentialsFrom(ctx)), userFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "playlists", page{Title: "Your playlists", Data: playlists})
}

// ownedPlaylist loads the playlist named by the {id} URL param or the playlist_id form field.
func (s *Server) ownedPlaylist(r *http.Request) (*models.Playlist, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.FormValue("playlist_id")
	}
	if id == "" {
		return nil, shared.ErrMissingArgument
	}

	p, err := s.store.Playlists.GetByExternalID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userFrom(r.Context()).ID {
		return nil, shared.ErrPlaylistNotFound
	}
	return p, nil
}

func (s *Server) playlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sort, err := repositories.ParseTrackSort(r.URL.Query().Get("sort"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.ownedPlaylist(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.SyncTracks(ctx, s.client(credentialsFrom(ctx)), p, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tracks, err := s.store.Tracks.ListByPlaylist(ctx, p.ID, sort)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "playlist", page{
		Title: p.Name,
		Data:  playlistData{Playlist: *p, Tracks: tracks, Sort: sort, Sorts: trackSorts, Result: res},
	})
}

func (s *Server) addTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.ownedPlaylist(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	trackID := strings.TrimSpace(r.FormValue("track_id"))
	if _, err := s.engine.AddTrack(ctx, s.client(credentialsFrom(ctx)), p, trackID); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/playlist/"+url.PathEscape(p.ExternalID), http.StatusSeeOther)
}

func (s *Server) removeTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.ownedPlaylist(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	track, err := s.store.Tracks.GetByExternalID(ctx, chi.URLParam(r, "trackID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := s.engine.RemoveTrack(ctx, s.client(credentialsFrom(ctx)), p, track); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/playlist/"+url.PathEscape(p.ExternalID), http.StatusSeeOther)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := searchData{Query: strings.TrimSpace(r.URL.Query().Get("query"))}
	if data.Query == "" {
		s.render(w, r, http.StatusOK, "search", page{Title: "Search", Data: data})
		return
	}

	results, err := s.client(credentialsFrom(ctx)).Search(ctx, data.Query, []string{"album", "artist", "track"}, searchLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data.Results = results

	if data.Playlists, err = s.store.Playlists.ListByOwner(ctx, userFrom(ctx).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "search", page{Title: "Search: " + data.Query, Data: data})
}

func (s *Server) album(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	album, err := s.client(credentialsFrom(ctx)).Album(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := albumData{Album: album}
	if data.Playlists, err = s.store.Playlists.ListByOwner(ctx, userFrom(ctx).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "album", page{Title: album.Name, Data: data})
}

// artist shows an artist with their top tracks and albums.
func (s *Server) artist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := s.client(credentialsFrom(ctx))
	id := chi.URLParam(r, "id")

	artist, err := client.Artist(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data := artistData{Artist: artist}

	if data.TopTracks, err = client.ArtistTopTracks(ctx, id, services.DefaultMarket); err != nil {
		s.fail(w, r, err)
		return
	}
	if data.Albums, err = client.ArtistAlbums(ctx, id, searchLimit); err != nil {
		s.fail(w, r, err)
		return
	}
	if data.Playlists, err = s.store.Playlists.ListByOwner(ctx, userFrom(ctx).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "artist", page{Title: artist.Name, Data: data})
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	data := recommendationData{Type: q.Get("type"), Value: strings.TrimSpace(q.Get("value"))}
	if data.Type == "" || data.Value == "" {
		s.render(w, r, http.StatusOK, "recommendations", page{Title: "Recommendations", Data: data})
		return
	}

	tracks, err := s.client(credentialsFrom(ctx)).Recommendations(ctx, data.Type, data.Value, searchLimit)
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		s.render(w, r, http.StatusOK, "recommendations", page{
			Title: "Recommendations",
			Flash: strings.ToUpper(data.Type[:1]) + data.Type[1:] + " not found.",
			Data:  data,
		})
		return
	case errors.Is(err, shared.ErrInvalidArgument):
		s.render(w, r, http.StatusBadRequest, "recommendations", page{Title: "Recommendations", Flash: "Invalid recommendation type.", Data: data})
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}
	data.Tracks = tracks

	if data.Playlists, err = s.store.Playlists.ListByOwner(ctx, userFrom(ctx).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "recommendations", page{Title: "Recommendations", Data: data})
}

func (s *Server) topTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracks, err := s.client(credentialsFrom(ctx)).TopTracks(ctx, historyLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rows := make([]trackRow, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, trackRow{Track: t})
	}
	s.renderTrackList(w, r, "Top tracks", rows)
}

func (s *Server) recentlyPlayed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := s.client(credentialsFrom(ctx)).RecentlyPlayed(ctx, historyLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rows := make([]trackRow, 0, len(history))
	for _, h := range history {
		rows = append(rows, trackRow{Track: h.Track, PlayedAt: h.PlayedAt})
	}
	s.renderTrackList(w, r, "Recently played", rows)
}

func (s *Server) renderTrackList(w http.ResponseWriter, r *http.Request, title string, rows []trackRow) {
	ctx := r.Context()
	playlists, err := s.store.Playlists.ListByOwner(ctx, userFrom(ctx).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "tracks", page{Title: title, Data: trackListData{Rows: rows, Playlists: playlists}})
}
