package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunemirror/internal/auth"
	"github.com/desertthunder/tunemirror/internal/models"
	"github.com/desertthunder/tunemirror/internal/repositories"
	"github.com/desertthunder/tunemirror/internal/services"
	"github.com/desertthunder/tunemirror/internal/session"
	"github.com/desertthunder/tunemirror/internal/shared"
	"github.com/desertthunder/tunemirror/internal/tasks"
)

// cliSessionLifetime is how long the "cli" session survives without use.
const cliSessionLifetime = 30 * 24 * time.Hour

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, playlistsCommand, tracksCommand,
		searchCommand, recommendCommand, exportCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// env is the database-backed state a command works against.
type env struct {
	db       *sqlx.DB
	store    *repositories.Store
	sessions *repositories.SessionRepository
	engine   *tasks.MirrorEngine
}

func (e *env) Close() error {
	return e.db.Close()
}

// open connects to the configured database and brings its schema up to date.
func (r *Runner) open() (*env, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store := repositories.NewStore(db)
	return &env{
		db:       db,
		store:    store,
		sessions: repositories.NewSessionRepository(db).WithLifetime(cliSessionLifetime),
		engine:   tasks.NewMirrorEngine(store, r.logger),
	}, nil
}

func (r *Runner) authManager() *auth.Manager {
	return auth.NewManager(r.config.Credentials.Spotify,
		auth.WithHTTPClient(r.httpClient),
		auth.WithLogger(shared.WithLogger(r.logger, "component", "auth")),
	)
}

// client returns a provider client authorized by creds.
func (r *Runner) client(creds session.CredentialStore) *services.SpotifyClient {
	sp := r.config.Credentials.Spotify
	return services.NewSpotifyClient(services.ClientOpts{
		BaseURL:    sp.APIURL,
		HTTPClient: r.httpClient,
		Limiter:    services.NewLimiter(sp.RequestsPerSecond, sp.Burst),
		Logger:     shared.WithLogger(r.logger, "component", "spotify"),
	}).WithCredentials(creds)
}

// account is the signed-in CLI user and a client bound to their credential.
type account struct {
	session *session.Session
	creds   *session.SessionCredentials
	user    *models.User
	client  *services.SpotifyClient
}

// signedIn loads the "cli" session, refreshing its access token when it has expired.
func (r *Runner) signedIn(ctx context.Context, e *env) (*account, error) {
	sess, err := e.sessions.Load(ctx, session.CLISessionID)
	if errors.Is(err, shared.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: run 'tunemirror auth login' first", shared.ErrNotAuthenticated)
	} else if err != nil {
		return nil, err
	}

	creds := session.NewSessionCredentials(e.sessions, sess)
	ok, err := r.authManager().IsUsable(ctx, creds)
	if err != nil {
		if auth.RequiresLogin(err) {
			return nil, fmt.Errorf("%w: run 'tunemirror auth login' again", err)
		}
		return nil, err
	}
	if !ok || sess.Data.UserID == "" {
		return nil, fmt.Errorf("%w: run 'tunemirror auth login' first", shared.ErrNotAuthenticated)
	}

	user, err := e.store.Users.Get(ctx, sess.Data.UserID)
	if err != nil {
		return nil, err
	}

	return &account{session: sess, creds: creds, user: user, client: r.client(creds)}, nil
}

// ownedPlaylist resolves id (local or Spotify id) to a playlist owned by user.
func ownedPlaylist(ctx context.Context, e *env, user *models.User, id string) (*models.Playlist, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	pl, err := e.store.Playlists.Get(ctx, id)
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		pl, err = e.store.Playlists.GetByExternalID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if pl.OwnerID != user.ID {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return pl, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
