package session

import (
	"context"
	"sync"

	"github.com/desertthunder/tunemirror/internal/models"
)

// CredentialStore holds the active token pair of one session.
type CredentialStore interface {
	Get() (models.Credential, bool)
	Set(ctx context.Context, c models.Credential) error
	Clear(ctx context.Context) error
}

// SessionCredentials is a [CredentialStore] backed by a [Session] and persisted through a [Store].
type SessionCredentials struct {
	mu    sync.Mutex
	store Store
	sess  *Session
}

func NewSessionCredentials(store Store, sess *Session) *SessionCredentials {
	return &SessionCredentials{store: store, sess: sess}
}

func (c *SessionCredentials) Get() (models.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Data.Credential == nil {
		return models.Credential{}, false
	}
	return *c.sess.Data.Credential, true
}

func (c *SessionCredentials) Set(ctx context.Context, cred models.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.sess.Data.Credential
	c.sess.Data.Credential = &cred
	if err := c.store.Save(ctx, c.sess); err != nil {
		c.sess.Data.Credential = prev
		return err
	}
	return nil
}

func (c *SessionCredentials) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.Data.Credential = nil
	return c.store.Save(ctx, c.sess)
}

// MemoryCredentials is an unpersisted [CredentialStore].
type MemoryCredentials struct {
	mu   sync.Mutex
	cred *models.Credential
}

// NewMemoryCredentials returns a store holding c, or an empty store when c is nil.
func NewMemoryCredentials(c *models.Credential) *MemoryCredentials {
	return &MemoryCredentials{cred: c}
}

func (m *MemoryCredentials) Get() (models.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return models.Credential{}, false
	}
	return *m.cred, true
}

func (m *MemoryCredentials) Set(_ context.Context, c models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &c
	return nil
}

func (m *MemoryCredentials) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}
