// Package session holds per-browser (or per-CLI) server-side state and the
// credential store bound to it.
//
// A [Session] is loaded by id from a [Store] at the start of each request. The
// id travels to the browser inside an HS256 JWT cookie produced by [CookieCodec].
// [SessionCredentials] exposes the session's token pair through the
// [CredentialStore] interface and persists every mutation back to the [Store].
package session
