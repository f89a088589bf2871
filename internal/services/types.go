// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// AvatarURL returns the first profile image, if any.
func (u SpotifyUser) AvatarURL() string {
	return firstImage(u.Images)
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
//
// ID is empty for local files and unavailable tracks.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	IsLocal    bool            `json:"is_local"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// ArtistNames returns the artist names in listed order.
func (t SpotifyTrack) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// PrimaryArtistID returns the id of the first listed artist, or "" when there is none.
func (t SpotifyTrack) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].ID
}

// CoverURL returns the album's first image, if any.
func (t SpotifyTrack) CoverURL() string {
	return firstImage(t.Album.Images)
}

// SpotifyArtist represents a Spotify artist.
//
// Followers, Genres and Popularity are only present on the full artist object.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Images     []SpotifyImage `json:"images"`
	Followers  Followers      `json:"followers"`
	Popularity int            `json:"popularity"`
	URI        string         `json:"uri"`
}

type Followers struct {
	Total int `json:"total"`
}

// ImageURL returns the artist's first image, if any.
func (a SpotifyArtist) ImageURL() string {
	return firstImage(a.Images)
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// ImageURL returns the album's first image, if any.
func (a SpotifyAlbum) ImageURL() string {
	return firstImage(a.Images)
}

// SpotifyFullAlbum is an album together with its first page of tracks.
//
// The nested tracks are simplified and carry no album of their own.
type SpotifyFullAlbum struct {
	SpotifyAlbum
	Label  string             `json:"label"`
	Tracks Page[SpotifyTrack] `json:"tracks"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Owner       Owner                `json:"owner"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
	Images      []SpotifyImage       `json:"images"`
	URI         string               `json:"uri"`
}

// CoverURL returns the playlist's first image, if any.
func (p SpotifySimplePlaylist) CoverURL() string {
	return firstImage(p.Images)
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil when the underlying track was removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlayHistory is one entry of the recently played list.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// Page is the envelope shared by every paginated list endpoint.
type Page[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// SearchResults holds one page per requested search type.
type SearchResults struct {
	Tracks  Page[SpotifyTrack]  `json:"tracks"`
	Artists Page[SpotifyArtist] `json:"artists"`
	Albums  Page[SpotifyAlbum]  `json:"albums"`
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
