package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/server"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// AuthLogin runs the PKCE flow against a local callback server and stores the credential in the "cli" session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: credentials.spotify.redirect_uri", shared.ErrInvalidConfig)
	}

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	mgr := r.authManager()
	state, verifier := auth.NewState(), auth.NewVerifier()
	handler, err := server.NewOAuthHandler(mgr, redirect.String(), state, verifier)
	if err != nil {
		return err
	}

	authURL := mgr.AuthCodeURL(state, verifier)
	cred, err := server.AwaitCallback(ctx, redirect.Host, handler, handler.Result(), cmd.Duration("timeout"), func() {
		r.writePlain("Open this URL to authorize tunemirror:\n%s\n\n", authURL)
		if cmd.Bool("no-browser") {
			return
		}
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	sess, err := e.sessions.Load(ctx, session.CLISessionID)
	if errors.Is(err, shared.ErrSessionNotFound) {
		sess = session.New(cliSessionLifetime)
		sess.ID = session.CLISessionID
	} else if err != nil {
		return err
	}

	creds := session.NewSessionCredentials(e.sessions, sess)
	if err := creds.Set(ctx, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	me, err := r.client(creds).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	user, created, err := e.store.Users.GetOrCreate(ctx, &models.User{
		ExternalID:  me.ID,
		DisplayName: me.DisplayName,
		Email:       me.Email,
		AvatarURL:   me.AvatarURL(),
	})
	if err != nil {
		return err
	}
	if created {
		r.logger.Info("new user", "external_id", user.ExternalID)
	}

	sess.Data.UserID = user.ID
	if err := e.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	r.writePlain("✓ Logged in as %s\n", displayName(user))
	r.writePlain("Run 'tunemirror sync playlists' to mirror your playlists\n")
	return nil
}

type authStatus struct {
	LoggedIn  bool      `json:"logged_in"`
	User      string    `json:"user,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Expired   bool      `json:"expired"`
}

// AuthStatus reports the stored login without contacting Spotify.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	status := authStatus{}
	sess, err := e.sessions.Load(ctx, session.CLISessionID)
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
	case err != nil:
		return err
	case sess.Data.Credential != nil:
		status.LoggedIn = true
		status.ExpiresAt = sess.Data.Credential.ExpiresAt()
		status.Expired = sess.Data.Credential.Expired(time.Now())
		if user, err := e.store.Users.Get(ctx, sess.Data.UserID); err == nil {
			status.User = displayName(user)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if !status.LoggedIn {
		return r.writePlain("Not logged in. Run 'tunemirror auth login'\n")
	}
	r.writePlain("Logged in as %s\n", status.User)
	if status.Expired {
		r.writePlain("Access token expired at %s (refreshed on next use)\n", status.ExpiresAt.Local().Format(time.RFC1123))
	} else {
		r.writePlain("Access token expires at %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthRefresh exchanges the stored refresh token for a new access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.sessions.Load(ctx, session.CLISessionID)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return fmt.Errorf("%w: run 'tunemirror auth login' first", shared.ErrNotAuthenticated)
		}
		return err
	}

	cred, err := r.authManager().Refresh(ctx, session.NewSessionCredentials(e.sessions, sess))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed, expires at %s\n", cred.ExpiresAt().Local().Format(time.RFC1123))
}

// AuthLogout deletes the "cli" session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.sessions.Delete(ctx, session.CLISessionID); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ExternalID
}
