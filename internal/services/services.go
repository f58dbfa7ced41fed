// package services defines the remote music service capabilities a migration depends on
package services

import (
	"context"
)

// Searcher finds catalog tracks for a free-text query.
type Searcher interface {
	// SearchTracks returns at most limit tracks starting at offset, restricted to market.
	SearchTracks(ctx context.Context, query string, limit, offset int, market string) ([]Track, error)
}

// PlaylistMutator appends tracks to an existing playlist.
type PlaylistMutator interface {
	// AddTracks inserts trackIDs, in order, into the user's playlist.
	// A nil position appends at the end.
	AddTracks(ctx context.Context, userID, playlistID string, trackIDs []string, position *int) error
}

// Service is a music streaming provider that can be migrated into.
type Service interface {
	Searcher
	PlaylistMutator

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// PlaylistVerifier is implemented by services that can check, before any mutation, that a user
// may modify a playlist.
type PlaylistVerifier interface {
	VerifyPlaylist(ctx context.Context, userID, playlistID string) error
}

// Track is a catalog track returned by a search.
type Track struct {
	ID     string // identifier accepted by AddTracks
	URI    string
	Title  string
	Artist string
	Album  string
}
