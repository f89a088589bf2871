package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "layout.html"

// page is the value every template renders.
type page struct {
	Title string
	User  *models.User
	Flash string
	Data  any
}

type errorData struct {
	Status    int
	Message   string
	RequestID string
}

// trackForm feeds the shared add-to-playlist form.
type trackForm struct {
	Playlists []models.Playlist
	TrackID   string
}

// renderer holds one template set per page, each parsed together with the layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"join":     strings.Join,
		"truncate": shared.Truncate,
		"inc":      func(i int) int { return i + 1 },
		"trackForm": func(playlists []models.Playlist, trackID string) trackForm {
			return trackForm{Playlists: playlists, TrackID: trackID}
		},
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		base := path.Base(name)
		if base == layoutTemplate {
			continue
		}
		t, err := template.New(layoutTemplate).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", base, err)
		}
		r.pages[strings.TrimSuffix(base, ".html")] = t
	}
	return r, nil
}

func (r *renderer) render(w http.ResponseWriter, status int, name string, p page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, p); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// render writes a full page for the current user.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.User = userFrom(r.Context())
	if err := s.pages.render(w, status, name, p); err != nil {
		s.logger.Error("render failed", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Error(message, "status", status, "path", r.URL.Path, "error", err)
	}
	s.render(w, r, status, "error", page{
		Title: http.StatusText(status),
		Data: errorData{
			Status:    status,
			Message:   message,
			RequestID: middleware.GetReqID(r.Context()),
		},
	})
}

// fail maps err to a response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *services.APIError
	switch {
	case auth.RequiresLogin(err), errors.Is(err, shared.ErrNotAuthenticated):
		s.redirectToLogin(w, r)
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		s.redirectToLogin(w, r)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		s.renderError(w, r, http.StatusNotFound, "That item could not be found.", nil)
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrTrackNotFound):
		s.renderError(w, r, http.StatusNotFound, "That item could not be found.", nil)
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidInput):
		s.renderError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrPartialPagination):
		s.renderError(w, r, http.StatusBadGateway, "Spotify returned an error. Please try again.", err)
	default:
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.", err)
	}
}
