package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/server"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
)

// memorySessionLimit caps the in-memory session store.
const memorySessionLimit = 1000

// Serve runs the web interface until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	cfg := *r.config
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	e, err := r.open()
	if err != nil {
		return err
	}
	defer e.Close()

	var sessions session.Store
	switch cfg.Session.Store {
	case "memory":
		sessions = session.NewMemoryStore(memorySessionLimit)
	case "", "sqlite":
		sessions = repositories.NewSessionRepository(e.db).WithLifetime(cfg.Session.Lifetime())
	default:
		return fmt.Errorf("%w: session.store %q", shared.ErrInvalidConfig, cfg.Session.Store)
	}

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Store:      e.store,
		Sessions:   sessions,
		Auth:       r.authManager(),
		Engine:     e.engine,
		Logger:     r.logger,
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("Serving on http://%s\n", cfg.Server.Addr())
	return srv.ListenAndServe(ctx)
}
