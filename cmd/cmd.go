// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login used by CLI commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify using OAuth2 PKCE",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the current login and token expiry",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the access token now",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// syncCommand mirrors remote state into the local database.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror Spotify playlists and tracks locally",
		Commands: []*cli.Command{
			{
				Name:   "playlists",
				Usage:  "Mirror the playlists visible to you",
				Flags:  jsonFlags(),
				Action: r.SyncPlaylists,
			},
			{
				Name:  "tracks",
				Usage: "Mirror the tracks of one or every owned playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Playlist ID (local or Spotify)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Sync every owned playlist",
					},
				},
				Action: r.SyncTracks,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "playlists",
		Usage:  "List mirrored playlists",
		Flags:  jsonFlags(),
		Action: r.Playlists,
	}
}

func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List, add or remove the tracks of a mirrored playlist",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Playlist ID (local or Spotify)",
				Local: true,
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort by artist, album, name or genre",
				Local: true,
			},
		}, jsonFlags()...),
		Action: r.Tracks,
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a track to a playlist and resync it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID (local or Spotify)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Spotify track ID",
						Required: true,
					},
				},
				Action: r.TracksAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a track from a playlist and resync it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID (local or Spotify)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Track ID (local or Spotify)",
						Required: true,
					},
				},
				Action: r.TracksRemove,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search Spotify for albums, artists and tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  "type",
				Usage: "Result types to include",
				Value: []string{"album", "artist", "track"},
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum results per type",
				Value: 10,
			},
		}, jsonFlags()...),
		Action: r.Search,
	}
}

func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recommend",
		Aliases: []string{"rec"},
		Usage:   "Get track recommendations, your top tracks or your recent plays",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "seed",
				Usage: "Seed type: genre, artist or track",
				Value: "genre",
			},
			&cli.StringFlag{
				Name:  "value",
				Usage: "Genre name, or the artist/track to look up",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tracks",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "top",
				Usage: "Show your top tracks instead",
			},
			&cli.BoolFlag{
				Name:  "recent",
				Usage: "Show your recently played tracks instead",
			},
		}, jsonFlags()...),
		Action: r.Recommend,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export mirrored playlists to csv, markdown or txt files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Playlist ID to export (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Export every owned playlist",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "csv, markdown or txt",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: tunemirror_export_{epoch})",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort by artist, album, name or genre",
			},
			&cli.BoolFlag{
				Name:  "covers",
				Usage: "Download cover images alongside markdown exports",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent export workers",
				Value: 4,
			},
		},
		Action: r.Export,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for mirrored playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file path",
				Value: "./tmp/tunemirror-tui.log",
			},
		},
		Action: r.TUI,
	}
}
