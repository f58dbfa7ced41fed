// Package services defines the capabilities a library migration consumes from a streaming service
// and implements them for Spotify.
//
// # Capabilities
//
//   - [Searcher] : free-text track search with limit, offset, and market
//   - [PlaylistMutator] : append an ordered list of track identifiers to a playlist
//   - [PlaylistVerifier] : optional preflight check that the user may modify the playlist
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. It authenticates with an OAuth2 token
// ([SpotifyService.OAuthenticate]) whose refresh is handled by [oauth2.TokenSource]; refreshed
// tokens are handed to the callback registered with [SpotifyService.SetTokenRefreshCallback] so
// the CLI can persist them.
//
// # Error Handling
//
// Errors are wrapped with sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : OAuthenticate() not called
//   - [shared.ErrTokenExpired] : the API rejected the token (401)
//   - [shared.ErrTimeout] : the call's context deadline passed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrPlaylistNotOwned] : playlist belongs to someone else and is not collaborative
//   - [shared.ErrAPIRequest] : any other failed request
//
// Nothing here retries. Callers decide what a failure means.
package services
