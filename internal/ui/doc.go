// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the local mirror and keeps it in step with Spotify:
//  1. [PlaylistListView] : Browse playlists, synced from Spotify on start
//  2. [SyncView] : Watch a playlist's track sync progress
//  3. [TrackListView] : Browse the mirrored tracks, cycling the sort order
//  4. [ConfirmView] : Confirm removing a track from the playlist
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the MirrorEngine, providing non-blocking status reporting during syncs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, s, r, x, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
