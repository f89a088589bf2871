package session

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/tunemirror/internal/shared"
)

// MemoryStore is a process-local [Store] with a bounded size.
//
// Sessions are copied in and out so callers never share a *Session with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	maxSize  int
	now      func() time.Time
}

func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		maxSize:  maxSize,
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, shared.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; !exists && len(m.sessions) >= m.maxSize {
		m.evictLocked()
	}

	s.UpdatedAt = m.now().UTC()
	m.sessions[s.ID] = *copySession(*s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// evictLocked drops expired sessions, or the oldest one when none have expired.
func (m *MemoryStore) evictLocked() {
	now := m.now()
	var (
		oldestID string
		oldest   time.Time
	)
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			continue
		}
		if oldestID == "" || s.UpdatedAt.Before(oldest) {
			oldestID, oldest = id, s.UpdatedAt
		}
	}
	if len(m.sessions) >= m.maxSize && oldestID != "" {
		delete(m.sessions, oldestID)
	}
}

func copySession(s Session) *Session {
	if s.Data.Credential != nil {
		c := *s.Data.Credential
		s.Data.Credential = &c
	}
	return &s
}
