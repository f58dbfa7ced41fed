package library

import (
	"errors"
	"fmt"

	"github.com/desertthunder/plmigrate/internal/models"
)

// Keys read from the export.
const (
	TracksKey = "Tracks"
	ArtistKey = "Artist"
	NameKey   = "Name"
	AlbumKey  = "Album"
)

// ErrMalformedEntry matches every [MalformedEntryError] with [errors.Is].
var ErrMalformedEntry = errors.New("malformed track entry")

// MalformedEntryError reports a track entry that is missing a required field or holds a non-string in it.
type MalformedEntryError struct {
	Key   string // key of the entry in the Tracks dictionary
	Field string // Artist, Name or Album
	Got   Kind   // kind found, when the field was present
	Found bool
}

func (e *MalformedEntryError) Error() string {
	if !e.Found {
		return fmt.Sprintf("malformed track entry %q: missing %q", e.Key, e.Field)
	}
	return fmt.Sprintf("malformed track entry %q: %q is %s, want string", e.Key, e.Field, e.Got)
}

func (e *MalformedEntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}

// ExtractTracks returns one track per dictionary entry of root["Tracks"], in iteration order.
//
// A root without a Tracks dictionary yields no tracks and no error. Entries whose value is not a
// dictionary are skipped. The first entry missing a string Artist, Name or Album aborts extraction.
func ExtractTracks(root Value) ([]models.Track, error) {
	rootDict, ok := AsDict(root)
	if !ok {
		return []models.Track{}, nil
	}

	node, ok := rootDict.Get(TracksKey)
	if !ok {
		return []models.Track{}, nil
	}
	tracksDict, ok := AsDict(node)
	if !ok {
		return []models.Track{}, nil
	}

	tracks := make([]models.Track, 0, tracksDict.Len())
	for _, entry := range tracksDict.Entries() {
		info, ok := AsDict(entry.Value)
		if !ok {
			continue
		}

		artist, err := field(entry.Key, info, ArtistKey)
		if err != nil {
			return nil, err
		}
		name, err := field(entry.Key, info, NameKey)
		if err != nil {
			return nil, err
		}
		album, err := field(entry.Key, info, AlbumKey)
		if err != nil {
			return nil, err
		}

		tracks = append(tracks, models.NewTrack(entry.Key, artist, name, album))
	}

	return tracks, nil
}

// LoadTracks decodes the export at path and extracts its tracks.
func LoadTracks(path string) ([]models.Track, error) {
	root, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractTracks(root)
}

func field(key string, info *Dict, name string) (string, error) {
	v, ok := info.Get(name)
	if !ok {
		return "", &MalformedEntryError{Key: key, Field: name}
	}
	s, ok := AsString(v)
	if !ok {
		return "", &MalformedEntryError{Key: key, Field: name, Got: v.Kind(), Found: true}
	}
	return s, nil
}
