package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// Handler is an [http.Handler] that knows which paths it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Deps are the collaborators a [Server] needs.
type Deps struct {
	Config   shared.Config
	Store    *repositories.Store
	Sessions session.Store
	Auth     *auth.Manager
	Engine   *tasks.MirrorEngine
	Logger   *log.Logger

	// HTTPClient is used for provider API calls. Defaults to a 30s timeout client.
	HTTPClient *http.Client
}

// Server serves the web interface.
type Server struct {
	cfg        shared.Config
	store      *repositories.Store
	sessions   session.Store
	codec      *session.CookieCodec
	auth       *auth.Manager
	engine     *tasks.MirrorEngine
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *log.Logger
	pages      *renderer
}

// New validates deps and builds a [Server].
func New(d Deps) (*Server, error) {
	if d.Store == nil || d.Sessions == nil || d.Auth == nil || d.Engine == nil {
		return nil, fmt.Errorf("%w: server dependencies are incomplete", shared.ErrInvalidConfig)
	}
	if d.Config.Session.Secret == "" {
		return nil, fmt.Errorf("%w: session secret is required", shared.ErrInvalidConfig)
	}
	if d.Logger == nil {
		d.Logger = shared.NewLogger(nil)
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	spotify := d.Config.Credentials.Spotify
	return &Server{
		cfg:        d.Config,
		store:      d.Store,
		sessions:   d.Sessions,
		codec:      session.NewCookieCodec(d.Config.Session.Secret, d.Config.Session.Lifetime()),
		auth:       d.Auth,
		engine:     d.Engine,
		limiter:    services.NewLimiter(spotify.RequestsPerSecond, spotify.Burst),
		httpClient: d.HTTPClient,
		logger:     shared.WithLogger(d.Logger, "component", "server"),
		pages:      pages,
	}, nil
}

// Routes builds the router for the web interface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(s.loadSession)

	r.Get("/", s.welcome)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("OK")) })

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.login)
		r.Get("/callback", s.callback)
		r.Get("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/user/profile", s.profile)

		r.Route("/playlist", func(r chi.Router) {
			r.Get("/playlists", s.playlists)
			r.Get("/{id}", s.playlist)
			r.Post("/add", s.addTrack)
			r.Post("/{id}/add", s.addTrack)
			r.Post("/{id}/remove/{trackID}", s.removeTrack)
		})

		r.Route("/music", func(r chi.Router) {
			r.Get("/search", s.search)
			r.Get("/recommendations", s.recommendations)
			r.Get("/top_tracks", s.topTracks)
			r.Get("/recently_played", s.recentlyPlayed)
			r.Get("/album/{id}", s.album)
			r.Get("/artist/{id}", s.artist)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// client returns a provider client authorized by creds.
func (s *Server) client(creds session.CredentialStore) *services.SpotifyClient {
	return services.NewSpotifyClient(services.ClientOpts{
		BaseURL:    s.cfg.Credentials.Spotify.APIURL,
		HTTPClient: s.httpClient,
		Limiter:    s.limiter,
		Logger:     s.logger,
	}).WithCredentials(creds)
}
