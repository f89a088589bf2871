package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsSynced MsgKind = iota
	MsgProgressUpdate
	MsgTracksSynced
	MsgTracksLoaded
)

type playlistsSynced struct {
	playlists []models.Playlist
	err       error
}

type tracksSynced struct {
	result *tasks.TrackSyncResult
	tracks []models.Track
	err    error
}

type tracksLoaded struct {
	tracks []models.Track
	err    error
}

// playlistsSyncedMsg is the constructor for [MsgPlaylistsSynced]
func playlistsSyncedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsSynced, data: playlistsSynced{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// tracksSyncedMsg is the constructor for [MsgTracksSynced]
func tracksSyncedMsg(result *tasks.TrackSyncResult, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksSynced, data: tracksSynced{result, tracks, err}}
}

// tracksLoadedMsg is the constructor for [MsgTracksLoaded]
func tracksLoadedMsg(tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksLoaded, data: tracksLoaded{tracks, err}}
}
