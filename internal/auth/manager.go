// Package auth manages the OAuth2 lifecycle of a session's credential: the
// authorization code + PKCE login and just-in-time refresh of expired tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

const invalidGrant = "invalid_grant"

// Manager decides whether a session's credential is usable and refreshes it when it is not.
//
// It keeps no state between calls; every decision is recomputed from the stored timestamps.
type Manager struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

type Option func(*Manager)

// WithClock overrides the time source used for expiry checks and acquired_at stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(cfg shared.SpotifyConfig, opts ...Option) *Manager {
	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     shared.NewLogger(nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsUsable reports whether the stored credential can authorize a request right now.
//
// It fails closed on a missing or incomplete credential. An expired credential is
// refreshed once and the refresh outcome is returned.
func (m *Manager) IsUsable(ctx context.Context, store session.CredentialStore) (bool, error) {
	cred, ok := store.Get()
	if !ok || !cred.Complete() {
		return false, nil
	}

	if !cred.Expired(m.now()) {
		return true, nil
	}

	m.logger.Debug("access token expired, refreshing", "expired_at", cred.ExpiresAt())
	if _, err := m.Refresh(ctx, store); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh exchanges the stored refresh token for a new access token.
//
// On success the access token, expiry and acquisition time are replaced in one Set.
// An invalid_grant response clears the store.
func (m *Manager) Refresh(ctx context.Context, store session.CredentialStore) (models.Credential, error) {
	cred, ok := store.Get()
	if !ok || cred.RefreshToken == "" {
		return models.Credential{}, &AuthError{Reason: MissingRefreshToken}
	}

	src := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if errorCode(err) == invalidGrant {
			if clearErr := store.Clear(ctx); clearErr != nil {
				m.logger.Error("failed to clear revoked credential", "error", clearErr)
			}
			m.logger.Warn("refresh token revoked, session cleared")
			return models.Credential{}, &AuthError{Reason: CredentialRevoked, Err: err}
		}
		return models.Credential{}, &AuthError{Reason: RefreshFailed, Err: err}
	}

	updated := cred
	updated.AccessToken = tok.AccessToken
	updated.ExpiresIn = m.expiresIn(tok)
	updated.AcquiredAt = m.now()
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}

	if err := store.Set(ctx, updated); err != nil {
		return models.Credential{}, &AuthError{Reason: RefreshFailed, Err: fmt.Errorf("failed to store refreshed credential: %w", err)}
	}

	m.logger.Debug("access token refreshed", "expires_in", updated.ExpiresIn)
	return updated, nil
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return oauth2.GenerateVerifier()[:32]
}

// AuthCodeURL builds the authorization URL with an S256 challenge derived from verifier.
func (m *Manager) AuthCodeURL(state, verifier string) string {
	return m.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code and its PKCE verifier for a credential.
func (m *Manager) Exchange(ctx context.Context, code, verifier string) (models.Credential, error) {
	if code == "" {
		return models.Credential{}, fmt.Errorf("%w: empty authorization code", shared.ErrAuthFailed)
	}

	tok, err := m.oauth.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	return models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    m.expiresIn(tok),
		AcquiredAt:   m.now(),
	}, nil
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Manager) expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	if !tok.Expiry.IsZero() {
		if secs := int64(tok.Expiry.Sub(m.now()).Seconds()); secs > 0 {
			return secs
		}
	}
	return 3600
}

// errorCode extracts the OAuth2 error code from a token endpoint failure.
func errorCode(err error) string {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return ""
	}
	if re.ErrorCode != "" {
		return re.ErrorCode
	}

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(re.Body, &body) == nil {
		return body.Error
	}
	return ""
}
