package models

import (
	"errors"
	"strings"
)

var (
	ErrAlreadyResolved = errors.New("track already resolved")
	ErrEmptyRemoteID   = errors.New("empty remote identifier")
)

// Track is one library entry. Artist, Title and Album are copied verbatim from the export.
//
// The remote identifier is absent until [Track.Resolve] assigns it, and can be assigned only once.
type Track struct {
	SourceKey string // key of the entry in the export's track dictionary
	Artist    string
	Title     string
	Album     string

	remoteID *string
}

// NewTrack creates an unresolved track.
func NewTrack(sourceKey, artist, title, album string) Track {
	return Track{SourceKey: sourceKey, Artist: artist, Title: title, Album: album}
}

// SearchQuery joins title, artist and album with single spaces, with no escaping or field scoping.
func (t Track) SearchQuery() string {
	return strings.Join([]string{t.Title, t.Artist, t.Album}, " ")
}

// RemoteID returns the resolved identifier and whether the track has been matched.
func (t Track) RemoteID() (string, bool) {
	if t.remoteID == nil {
		return "", false
	}
	return *t.remoteID, true
}

// Resolve records the remote identifier the track matched.
func (t *Track) Resolve(id string) error {
	if t.remoteID != nil {
		return ErrAlreadyResolved
	}
	if id == "" {
		return ErrEmptyRemoteID
	}
	t.remoteID = &id
	return nil
}

// Batch is a contiguous run of remote identifiers submitted in a single mutation call.
type Batch struct {
	Index int      // zero-based position among the run's batches
	Start int      // offset of IDs[0] in the full identifier list
	IDs   []string // identifiers in playlist insertion order
}

// Len returns the number of identifiers in the batch.
func (b Batch) Len() int {
	return len(b.IDs)
}

// End returns the exclusive end offset of the batch in the full identifier list.
func (b Batch) End() int {
	return b.Start + len(b.IDs)
}
