package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

const defaultCookieName = "tunemirror_session"

type ctxKey int

const (
	sessionKey ctxKey = iota
	credentialsKey
	userKey
)

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// loadSession attaches the caller's session, or a fresh unsaved one, to the request context.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFromCookie(r)
		if sess == nil {
			sess = session.New(s.codec.Lifetime())
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionFromCookie(r *http.Request) *session.Session {
	c, err := r.Cookie(s.cookieName())
	if err != nil {
		return nil
	}

	id, err := s.codec.Decode(c.Value)
	if err != nil {
		s.logger.Debug("rejected session cookie", "error", err)
		return nil
	}

	sess, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		if !errors.Is(err, shared.ErrSessionNotFound) {
			s.logger.Warn("failed to load session", "error", err)
		}
		return nil
	}
	return sess
}

// saveSession persists sess and (re)issues its cookie.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		return err
	}

	token, err := s.codec.Encode(sess.ID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.codec.Lifetime().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) cookieName() string {
	if s.cfg.Session.CookieName == "" {
		return defaultCookieName
	}
	return s.cfg.Session.CookieName
}

// requireAuth lets the request through only with a usable credential and a known user.
//
// An expired access token is refreshed here, before any provider call is made.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := sessionFrom(ctx)
		creds := session.NewSessionCredentials(s.sessions, sess)

		ok, err := s.auth.IsUsable(ctx, creds)
		switch {
		case err != nil && auth.RequiresLogin(err):
			s.logger.Info("session requires login", "reason", err)
			s.redirectToLogin(w, r)
			return
		case err != nil:
			s.renderError(w, r, http.StatusBadGateway, "We couldn't refresh your Spotify session. Please try again.", err)
			return
		case !ok || sess.Data.UserID == "":
			s.redirectToLogin(w, r)
			return
		}

		user, err := s.store.Users.Get(ctx, sess.Data.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrUserNotFound) {
				s.redirectToLogin(w, r)
				return
			}
			s.fail(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, credentialsKey, creds)
		ctx = context.WithValue(ctx, userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}

func credentialsFrom(ctx context.Context) session.CredentialStore {
	creds, _ := ctx.Value(credentialsKey).(session.CredentialStore)
	return creds
}

func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}
