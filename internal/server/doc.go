// Package server runs the short-lived local HTTP server that receives the Spotify OAuth2 callback.
//
// # Router Infrastructure
//
// The [Router] interface registers [Handler] implementations and applies [Middleware].
// Middleware wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [BasicRouter] uses [http.ServeMux] internally.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter
// (CSRF protection), exchanges the code for a token, and delivers exactly one [OAuthResult].
// Later callbacks are rejected to prevent replay.
//
// # Lifecycle
//
// `plmigrate auth` starts a [CallbackServer] on the configured host and port (127.0.0.1:8888 by
// default), opens the browser, waits for the result with [OAuthHandler.Await], and shuts the
// server down. A denied authorization, a state mismatch, or a timeout ends the command with an error.
package server
