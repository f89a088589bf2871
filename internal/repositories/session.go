package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// SessionRepository is the SQLite-backed [session.Store].
type SessionRepository struct {
	db       sqlx.ExtContext
	lifetime time.Duration
	now      func() time.Time
}

type sessionRow struct {
	ID        string    `db:"id"`
	Data      string    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func NewSessionRepository(db sqlx.ExtContext) *SessionRepository {
	return &SessionRepository{db: db, lifetime: time.Hour, now: time.Now}
}

// WithLifetime sets how long a saved session stays valid without being saved again.
func (r *SessionRepository) WithLifetime(d time.Duration) *SessionRepository {
	r.lifetime = d
	return r
}

func (r *SessionRepository) Load(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	query := `SELECT id, data, created_at, updated_at, expires_at FROM sessions WHERE id = ? AND expires_at > ?`
	if err := sqlx.GetContext(ctx, r.db, &row, query, id, r.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	s := &session.Session{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt, ExpiresAt: row.ExpiresAt}
	if err := json.Unmarshal([]byte(row.Data), &s.Data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return s, nil
}

// Save upserts s and slides its expiry forward.
func (r *SessionRepository) Save(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(r.lifetime)

	query := `INSERT INTO sessions (id, data, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at, expires_at = excluded.expires_at`

	if _, err := r.db.ExecContext(ctx, query, s.ID, string(data), s.CreatedAt, s.UpdatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Purge deletes expired sessions and returns how many were removed.
func (r *SessionRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}
