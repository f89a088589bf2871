package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NextSequence increments and returns the next sequence number for the given table.
//
// It runs on ex, so inside a transaction the counter advances only if the transaction commits.
func NextSequence(ctx context.Context, ex sqlx.ExtContext, table string) (int64, error) {
	sequenceTable := table + "_sequence"

	if _, err := ex.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int64
	if err := sqlx.GetContext(ctx, ex, &sequence, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}

// Repos groups the repositories bound to one executor.
type Repos struct {
	Users       *UserRepository
	Playlists   *PlaylistRepository
	Tracks      *TrackRepository
	Memberships *MembershipRepository
}

func newRepos(ex sqlx.ExtContext) *Repos {
	return &Repos{
		Users:       NewUserRepository(ex),
		Playlists:   NewPlaylistRepository(ex),
		Tracks:      NewTrackRepository(ex),
		Memberships: NewMembershipRepository(ex),
	}
}

// Store owns the database handle and hands out repositories.
type Store struct {
	*Repos
	db       *sqlx.DB
	Sessions *SessionRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{Repos: newRepos(db), db: db, Sessions: NewSessionRepository(db)}
}

// InTx runs fn with repositories bound to a single transaction.
//
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
