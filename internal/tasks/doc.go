// Package tasks mirrors a user's remote library into the local database with real-time progress reporting.
//
// # Core Operations
//
// [MirrorEngine] runs two reconciliation passes:
//
//  1. [MirrorEngine.SyncPlaylists] : Mirror the playlists the user can see
//     - Exhausts the paginated playlist listing before touching the database
//     - Creates unknown playlists and updates the name, track count and cover of known ones
//     - Returns every playlist owned by the user
//
//  2. [MirrorEngine.SyncTracks] : Mirror one playlist's membership
//     - Exhausts the paginated track listing before touching the database
//     - Diffs the remote set against the local one by external id
//     - Resolves genres for tracks seen for the first time through [GenreEnricher]
//     - Writes the removals, new tracks and new links in one transaction
//
// Both passes are idempotent: re-running against an unchanged remote writes nothing.
// Items without an external id are skipped and logged; they never abort a pass.
// A failed page aborts the pass with a [SyncError] and nothing is written.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Export
//
// [MirrorEngine.Export] writes mirrored playlists to disk with a bounded worker pool.
package tasks
