package tasks

import (
	"fmt"

	"github.com/desertthunder/tunemirror/internal/shared"
)

// SyncReason classifies why a reconciliation pass stopped.
type SyncReason int

const (
	PartialPagination SyncReason = iota
	PersistFailed
)

func (r SyncReason) String() string {
	switch r {
	case PartialPagination:
		return "partial_pagination"
	case PersistFailed:
		return "persist_failed"
	default:
		return ""
	}
}

// SyncError reports a pass that was aborted without committing.
type SyncError struct {
	Playlist string // external id, empty for a playlist pass
	Reason   SyncReason
	Err      error
}

func (e *SyncError) Error() string {
	target := "playlists"
	if e.Playlist != "" {
		target = "playlist " + e.Playlist
	}
	return fmt.Sprintf("sync %s aborted (%s): %v", target, e.Reason, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is matches [shared.ErrPartialPagination] for pagination failures.
func (e *SyncError) Is(target error) bool {
	return e.Reason == PartialPagination && target == shared.ErrPartialPagination
}
