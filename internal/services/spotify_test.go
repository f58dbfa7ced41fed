package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plmigrate/internal/shared"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// fakeSpotify is a minimal stand-in for the Web API.
type fakeSpotify struct {
	mu           sync.Mutex
	owner        string
	searchStatus int
	searchBody   string
	addStatus    int
	searches     []string
	adds         [][]string
	playlistGets int
	authHeaders  []string
}

func (f *fakeSpotify) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searches = append(f.searches, r.URL.RawQuery)
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.mu.Unlock()

		if f.searchStatus != 0 {
			w.WriteHeader(f.searchStatus)
			_, _ = fmt.Fprintf(w, `{"error":{"status":%d,"message":"failed"}}`, f.searchStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.searchBody)
	})
	mux.HandleFunc("/playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.playlistGets++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"pl1","name":"Imported","collaborative":false,"owner":{"id":"`+f.owner+`"}}`)
	})
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.adds = append(f.adds, body.URIs)
		f.mu.Unlock()

		if f.addStatus != 0 {
			w.WriteHeader(f.addStatus)
			_, _ = io.WriteString(w, `{"error":{"status":500,"message":"failed"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"snapshot_id":"snap"}`)
	})
	mux.HandleFunc("/playlists/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"status":404,"message":"Not found"}}`)
	})
	return mux
}

func newTestService(t *testing.T, f *fakeSpotify) *SpotifyService {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(testCredentials, WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	token := &oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := srv.OAuthenticate(context.Background(), token); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return srv
}

const yesterdayResult = `{"tracks":{"href":"","limit":1,"offset":0,"total":1,"items":[
	{"id":"3BQHpFgAp4l80e1XslIjNI","uri":"spotify:track:3BQHpFgAp4l80e1XslIjNI","name":"Yesterday - Remastered 2009",
	 "artists":[{"id":"3WrFJ7ztbogyGnTHbHJFl2","name":"The Beatles"}],"album":{"id":"0PT5m6hwPRrpBwIHVnvbFX","name":"Help! (Remastered)"}}
]}}`

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://127.0.0.1:9999/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.config.RedirectURL != "http://127.0.0.1:9999/callback" {
				t.Errorf("expected configured redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != defaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "playlist-modify-private"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL %q should contain %q", authURL, want)
			}
		}
	})

	t.Run("OAuthenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("Missing Token", func(t *testing.T) {
			if err := srv.OAuthenticate(context.Background(), nil); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if err := srv.OAuthenticate(context.Background(), &oauth2.Token{}); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated for empty token, got %v", err)
			}
		})

		t.Run("Calls Before Authentication", func(t *testing.T) {
			if _, err := srv.SearchTracks(context.Background(), "q", 1, 0, "US"); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if err := srv.AddTracks(context.Background(), "u", "pl1", []string{"a"}, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Service Interface", func(t *testing.T) {
		var _ Service = (*SpotifyService)(nil)
		var _ OAuthService = (*SpotifyService)(nil)
		var _ PlaylistVerifier = (*SpotifyService)(nil)
	})

	t.Run("SearchTracks", func(t *testing.T) {
		t.Run("returns top hit", func(t *testing.T) {
			f := &fakeSpotify{searchBody: yesterdayResult}
			srv := newTestService(t, f)

			tracks, err := srv.SearchTracks(context.Background(), "Yesterday The Beatles Help!", 1, 0, "US")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(tracks))
			}

			got := tracks[0]
			if got.ID != "3BQHpFgAp4l80e1XslIjNI" {
				t.Errorf("expected track ID, got %q", got.ID)
			}
			if got.Artist != "The Beatles" || got.Album != "Help! (Remastered)" {
				t.Errorf("unexpected track metadata: %+v", got)
			}

			if len(f.searches) != 1 {
				t.Fatalf("expected 1 search request, got %d", len(f.searches))
			}
			query := f.searches[0]
			for _, want := range []string{"limit=1", "offset=0", "market=US", "type=track", "q=Yesterday"} {
				if !strings.Contains(query, want) {
					t.Errorf("search query %q should contain %q", query, want)
				}
			}
			if f.authHeaders[0] != "Bearer test_access_token" {
				t.Errorf("expected bearer token, got %q", f.authHeaders[0])
			}
		})

		t.Run("empty result", func(t *testing.T) {
			f := &fakeSpotify{searchBody: `{"tracks":{"items":[],"total":0}}`}
			srv := newTestService(t, f)

			tracks, err := srv.SearchTracks(context.Background(), "Nothing Like This", 1, 0, "US")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
		})

		t.Run("omits empty market", func(t *testing.T) {
			f := &fakeSpotify{searchBody: `{"tracks":{"items":[]}}`}
			srv := newTestService(t, f)

			if _, err := srv.SearchTracks(context.Background(), "q", 1, 0, ""); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if strings.Contains(f.searches[0], "market=") {
				t.Errorf("expected no market parameter, got %q", f.searches[0])
			}
		})

		t.Run("errors", func(t *testing.T) {
			tests := []struct {
				name   string
				status int
				want   error
			}{
				{name: "unauthorized", status: http.StatusUnauthorized, want: shared.ErrTokenExpired},
				{name: "forbidden", status: http.StatusForbidden, want: shared.ErrAuthFailed},
				{name: "server error", status: http.StatusInternalServerError, want: shared.ErrAPIRequest},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					f := &fakeSpotify{searchStatus: tt.status}
					srv := newTestService(t, f)

					_, err := srv.SearchTracks(context.Background(), "q", 1, 0, "US")
					if !errors.Is(err, tt.want) {
						t.Errorf("expected %v, got %v", tt.want, err)
					}
				})
			}
		})

		t.Run("deadline", func(t *testing.T) {
			f := &fakeSpotify{searchBody: yesterdayResult}
			srv := newTestService(t, f)

			ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
			defer cancel()

			if _, err := srv.SearchTracks(ctx, "q", 1, 0, "US"); !errors.Is(err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", err)
			}
		})
	})

	t.Run("AddTracks", func(t *testing.T) {
		t.Run("appends in order", func(t *testing.T) {
			f := &fakeSpotify{owner: "alice"}
			srv := newTestService(t, f)

			ids := []string{"id1", "id2", "id3"}
			if err := srv.AddTracks(context.Background(), "alice", "pl1", ids, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if err := srv.AddTracks(context.Background(), "alice", "pl1", []string{"id4"}, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(f.adds) != 2 {
				t.Fatalf("expected 2 add requests, got %d", len(f.adds))
			}
			want := []string{"spotify:track:id1", "spotify:track:id2", "spotify:track:id3"}
			for i, uri := range want {
				if f.adds[0][i] != uri {
					t.Errorf("uri %d: expected %s, got %s", i, uri, f.adds[0][i])
				}
			}
			if f.playlistGets != 1 {
				t.Errorf("expected ownership to be checked once, got %d", f.playlistGets)
			}
		})

		t.Run("not owned", func(t *testing.T) {
			f := &fakeSpotify{owner: "bob"}
			srv := newTestService(t, f)

			err := srv.AddTracks(context.Background(), "alice", "pl1", []string{"id1"}, nil)
			if !errors.Is(err, shared.ErrPlaylistNotOwned) {
				t.Fatalf("expected ErrPlaylistNotOwned, got %v", err)
			}
			if len(f.adds) != 0 {
				t.Errorf("expected no add requests, got %d", len(f.adds))
			}
		})

		t.Run("missing playlist", func(t *testing.T) {
			srv := newTestService(t, &fakeSpotify{})

			err := srv.VerifyPlaylist(context.Background(), "alice", "missing")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})

		t.Run("rejected batch", func(t *testing.T) {
			f := &fakeSpotify{owner: "alice", addStatus: http.StatusInternalServerError}
			srv := newTestService(t, f)

			err := srv.AddTracks(context.Background(), "alice", "pl1", []string{"id1"}, nil)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("position unsupported", func(t *testing.T) {
			f := &fakeSpotify{owner: "alice"}
			srv := newTestService(t, f)

			pos := 0
			err := srv.AddTracks(context.Background(), "alice", "pl1", []string{"id1"}, &pos)
			if !errors.Is(err, shared.ErrNotImplemented) {
				t.Errorf("expected ErrNotImplemented, got %v", err)
			}
		})

		t.Run("empty batch", func(t *testing.T) {
			f := &fakeSpotify{owner: "alice"}
			srv := newTestService(t, f)

			if err := srv.AddTracks(context.Background(), "alice", "pl1", nil, nil); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if f.playlistGets != 0 || len(f.adds) != 0 {
				t.Error("expected no requests for an empty batch")
			}
		})
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})
		if srv.onTokenRefresh == nil {
			t.Error("expected callback to be set")
		}

		srv.SetTokenRefreshCallback(nil)
		if srv.onTokenRefresh != nil {
			t.Error("expected callback to be nil")
		}
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("skips callback for the saved token", func(t *testing.T) {
			called := false
			source := &refreshableTokenSource{
				source:    &mockTokenSource{token: &oauth2.Token{AccessToken: "saved"}},
				callback:  func(*oauth2.Token) { called = true },
				lastToken: "saved",
			}

			if _, err := source.Token(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if called {
				t.Error("expected no callback for an unchanged token")
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			var captured []string
			mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
			source := &refreshableTokenSource{
				source:   mockSource,
				callback: func(token *oauth2.Token) { captured = append(captured, token.AccessToken) },
			}

			_, _ = source.Token()
			_, _ = source.Token()
			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if len(captured) != 2 || captured[0] != "token1" || captured[1] != "token2" {
				t.Errorf("expected [token1 token2], got %v", captured)
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("handles nil callback", func(t *testing.T) {
			source := &refreshableTokenSource{source: &mockTokenSource{token: &oauth2.Token{AccessToken: "t"}}}

			token, err := source.Token()
			if err != nil || token.AccessToken != "t" {
				t.Errorf("expected token, got %v, %v", token, err)
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			source := &refreshableTokenSource{
				source: &mockTokenSource{err: errors.New("token source error")},
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
			if !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error text, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
