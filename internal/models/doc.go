// Package models defines the entities of the local mirror.
//
// Every mirrored entity is keyed locally by a generated UUID and naturally by the
// external id the music provider assigned to it:
//   - [User] : the authenticated account, created on the first successful login
//   - [Playlist] : a playlist owned by a [User]; the owner never changes after creation
//   - [Track] : a track shared across playlists, created once and referenced many times
//   - [Membership] : the playlist/track pair, recomputed wholesale on every sync pass
//
// [Credential] is not persisted in a table of its own; it lives in the session that owns it.
package models
