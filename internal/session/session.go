package session

import (
	"context"
	"time"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// CLISessionID identifies the session used by command-line invocations.
const CLISessionID = "cli"

// Data is the state carried by a session.
type Data struct {
	Credential   *models.Credential `json:"credential,omitempty"`
	CodeVerifier string             `json:"code_verifier,omitempty"`
	State        string             `json:"state,omitempty"`
	UserID       string             `json:"user_id,omitempty"`
}

type Session struct {
	ID        string
	Data      Data
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// New creates an unsaved session with a fresh id.
func New(lifetime time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        shared.GenerateID(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// Expired reports whether the session has outlived its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions. Load returns [shared.ErrSessionNotFound] for unknown or expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
