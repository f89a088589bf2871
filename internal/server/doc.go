// Package server provides the web interface, its middleware, and the OAuth callback used by the CLI.
//
// # Routing
//
// [Server.Routes] builds a chi router. Every request passes through request id, panic recovery,
// and structured request logging. Pages that talk to the provider sit behind the session and auth
// middleware:
//
//	GET  /                                welcome page
//	GET  /auth/login                      start PKCE authorization
//	GET  /auth/callback                   finish authorization, create the user
//	GET  /auth/logout                     drop the session
//	GET  /user/profile                    profile and mirror statistics
//	GET  /playlist/playlists              sync and list playlists
//	GET  /playlist/{id}?sort=             sync and list one playlist's tracks
//	POST /playlist/{id}/add               add a track, then re-sync
//	POST /playlist/{id}/remove/{trackID}  remove a track, then re-sync
//	GET  /music/search?query=             catalog search
//	GET  /music/recommendations           seeded recommendations
//	GET  /music/top_tracks                the user's top tracks
//	GET  /music/recently_played           the user's recent plays
//
// # Sessions
//
// The session id travels in a signed cookie (see [session.CookieCodec]); its data lives in a [session.Store].
// Credentials are read and refreshed through [session.SessionCredentials] so every refresh is persisted.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback for command-line logins.
// It validates the state parameter, exchanges the code with the PKCE verifier,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
package server
