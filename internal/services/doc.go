// Package services implements the authenticated Spotify Web API client used to
// populate and modify the local mirror.
//
// # Client
//
// [SpotifyClient] is shared process-wide (HTTP client, rate limiter, logger) and
// bound to one session's credentials with [SpotifyClient.WithCredentials]. Every
// call attaches the bound access token as a Bearer header. The client never
// refreshes or retries; callers make the credential usable first.
//
// # Errors
//
// Any non-2xx response becomes an [*APIError] carrying the status and raw body.
// [APIError] matches [shared.ErrAPIRequest] with errors.Is.
//
// # Pagination
//
// [Paginate] returns a one-shot [Pager] over a limit/offset list endpoint. Pages
// are fetched lazily while ranging over [Pager.All] and the pager stops once the
// envelope's next field is null.
//
// # Typed responses
//
// Each endpoint decodes into an explicit DTO (see types.go). Helpers on the DTOs
// apply the defaults the mirror needs (first image, first artist, joined names).
package services
