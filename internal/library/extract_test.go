package library

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func decodeString(t *testing.T, s string) Value {
	t.Helper()
	v, err := Decode(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return v
}

func TestExtractTracks(t *testing.T) {
	t.Run("single track", func(t *testing.T) {
		root := decodeString(t, `<plist><dict><key>Tracks</key><dict>
			<key>1</key><dict><key>Artist</key><string>A</string><key>Name</key><string>B</string><key>Album</key><string>C</string></dict>
		</dict></dict></plist>`)

		tracks, err := ExtractTracks(root)
		if err != nil {
			t.Fatalf("ExtractTracks() error = %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}

		got := tracks[0]
		if got.Artist != "A" || got.Title != "B" || got.Album != "C" {
			t.Errorf("unexpected track %+v", got)
		}
		if _, ok := got.RemoteID(); ok {
			t.Error("extracted track should be unresolved")
		}
	})

	t.Run("fixture order", func(t *testing.T) {
		tracks, err := LoadTracks(filepath.Join("testdata", "Library.xml"))
		if err != nil {
			t.Fatalf("LoadTracks() error = %v", err)
		}

		want := []struct{ key, title, artist string }{
			{"812", "Yesterday", "The Beatles"},
			{"204", "Hurt", "Johnny Cash"},
			{"1530", "Clair de Lune & Other Pieces", "Claude Debussy"},
		}
		if len(tracks) != len(want) {
			t.Fatalf("expected %d tracks, got %d", len(want), len(tracks))
		}
		for i, w := range want {
			if tracks[i].SourceKey != w.key || tracks[i].Title != w.title || tracks[i].Artist != w.artist {
				t.Errorf("track %d = %+v, want %+v", i, tracks[i], w)
			}
		}
		if q := tracks[0].SearchQuery(); q != "Yesterday The Beatles Help!" {
			t.Errorf("SearchQuery() = %q", q)
		}
	})

	t.Run("no Tracks key", func(t *testing.T) {
		root := decodeString(t, `<plist><dict><key>Major Version</key><integer>1</integer></dict></plist>`)

		tracks, err := ExtractTracks(root)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(tracks))
		}
	})

	t.Run("root is not a dict", func(t *testing.T) {
		tracks, err := ExtractTracks(decodeString(t, `<plist><array/></plist>`))
		if err != nil || len(tracks) != 0 {
			t.Errorf("expected empty result, got %v, %v", tracks, err)
		}
	})

	t.Run("Tracks is not a dict", func(t *testing.T) {
		tracks, err := ExtractTracks(decodeString(t, `<plist><dict><key>Tracks</key><string>none</string></dict></plist>`))
		if err != nil || len(tracks) != 0 {
			t.Errorf("expected empty result, got %v, %v", tracks, err)
		}
	})

	t.Run("non-dict entries are skipped", func(t *testing.T) {
		root := decodeString(t, `<plist><dict><key>Tracks</key><dict>
			<key>1</key><string>garbage</string>
			<key>2</key><dict><key>Artist</key><string>A</string><key>Name</key><string>B</string><key>Album</key><string>C</string></dict>
		</dict></dict></plist>`)

		tracks, err := ExtractTracks(root)
		if err != nil {
			t.Fatalf("ExtractTracks() error = %v", err)
		}
		if len(tracks) != 1 || tracks[0].SourceKey != "2" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("malformed entries", func(t *testing.T) {
		tc := []struct {
			name      string
			entry     string
			wantField string
			wantFound bool
		}{
			{
				name:      "missing album",
				entry:     `<key>Artist</key><string>A</string><key>Name</key><string>B</string>`,
				wantField: AlbumKey,
			},
			{
				name:      "missing artist",
				entry:     `<key>Name</key><string>B</string><key>Album</key><string>C</string>`,
				wantField: ArtistKey,
			},
			{
				name:      "integer name",
				entry:     `<key>Artist</key><string>A</string><key>Name</key><integer>7</integer><key>Album</key><string>C</string>`,
				wantField: NameKey,
				wantFound: true,
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				root := decodeString(t, `<plist><dict><key>Tracks</key><dict>
					<key>1</key><dict><key>Artist</key><string>ok</string><key>Name</key><string>ok</string><key>Album</key><string>ok</string></dict>
					<key>99</key><dict>`+tt.entry+`</dict>
				</dict></dict></plist>`)

				tracks, err := ExtractTracks(root)
				if tracks != nil {
					t.Errorf("expected no tracks on failure, got %d", len(tracks))
				}
				if !errors.Is(err, ErrMalformedEntry) {
					t.Fatalf("expected ErrMalformedEntry, got %v", err)
				}

				var mErr *MalformedEntryError
				if !errors.As(err, &mErr) {
					t.Fatalf("expected *MalformedEntryError, got %T", err)
				}
				if mErr.Key != "99" {
					t.Errorf("expected offending key 99, got %s", mErr.Key)
				}
				if mErr.Field != tt.wantField {
					t.Errorf("expected field %s, got %s", tt.wantField, mErr.Field)
				}
				if mErr.Found != tt.wantFound {
					t.Errorf("expected found=%v", tt.wantFound)
				}
				if !strings.Contains(err.Error(), "99") {
					t.Errorf("error should name the key: %v", err)
				}
			})
		}
	})
}
