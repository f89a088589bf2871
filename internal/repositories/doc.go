// Package repositories implements SQLite persistence for the mirror on top of sqlx.
//
// Every repository is built over an [sqlx.ExtContext], so the same code runs
// against the pooled database or inside a transaction. [Store.InTx] hands a set
// of transaction-bound repositories to a callback and commits only if it returns nil.
//
// Key Implementations:
//   - [UserRepository] : users keyed by external id
//   - [PlaylistRepository] : playlists with their owner
//   - [TrackRepository] : tracks shared across playlists, with sorted per-playlist listing
//   - [MembershipRepository] : the playlist/track pairs
//   - [SessionRepository] : the persistent session store
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and
// creation timestamps. [NextSequence] increments per-table counters in dedicated
// sequence tables using the caller's executor.
package repositories
