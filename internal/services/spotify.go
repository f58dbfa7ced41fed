// Spotify implementation of [Service]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const defaultRedirectURI = "http://127.0.0.1:8888/callback"

// Scopes requested by the authorization flow.
var SpotifyScopes = []string{
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistReadPrivate,
}

// OAuthService is a [Service] that authenticates with an OAuth2 authorization code flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the API client at another Web API root (used by tests). The URL must end in "/".
func WithBaseURL(url string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = url }
}

// WithHTTPClient sets the client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// SpotifyService implements [Service] on top of [spotify.Client].
type SpotifyService struct {
	config         *oauth2.Config
	httpClient     *http.Client
	baseURL        string
	client         *spotify.Client
	onTokenRefresh func(*oauth2.Token)

	mu       sync.Mutex
	verified map[string]error // "user|playlist" -> result of VerifyPlaylist
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		httpClient: http.DefaultClient,
		verified:   make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to receive every token the token source issues after the first.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// OAuthenticate builds the API client from token. Expired tokens are refreshed on first use.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no saved token, run `plmigrate auth`", shared.ErrNotAuthenticated)
	}

	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient)
	source := &refreshableTokenSource{
		source:    s.config.TokenSource(tokenCtx, token),
		callback:  s.onTokenRefresh,
		lastToken: token.AccessToken,
	}

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(oauth2.NewClient(tokenCtx, source), opts...)
	return nil
}

// Me returns the ID and display name of the authenticated user.
func (s *SpotifyService) Me(ctx context.Context) (string, string, error) {
	if s.client == nil {
		return "", "", shared.ErrNotAuthenticated
	}
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return "", "", wrapSpotifyError(ctx, err)
	}
	return user.ID, user.DisplayName, nil
}

// SearchTracks runs a track search.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit, offset int, market string) ([]Track, error) {
	if s.client == nil {
		return nil, shared.ErrNotAuthenticated
	}

	opts := []spotify.RequestOption{spotify.Limit(limit), spotify.Offset(offset)}
	if market != "" {
		opts = append(opts, spotify.Market(market))
	}

	result, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, wrapSpotifyError(ctx, err)
	}
	if result.Tracks == nil {
		return nil, nil
	}

	tracks := make([]Track, 0, len(result.Tracks.Tracks))
	for _, ft := range result.Tracks.Tracks {
		track := Track{
			ID:    ft.ID.String(),
			URI:   string(ft.URI),
			Title: ft.Name,
			Album: ft.Album.Name,
		}
		if len(ft.Artists) > 0 {
			track.Artist = ft.Artists[0].Name
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// VerifyPlaylist checks that playlistID exists and that userID owns it or it is collaborative.
// The result is cached for the life of the service.
func (s *SpotifyService) VerifyPlaylist(ctx context.Context, userID, playlistID string) error {
	if s.client == nil {
		return shared.ErrNotAuthenticated
	}

	key := userID + "|" + playlistID
	s.mu.Lock()
	if err, ok := s.verified[key]; ok {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	playlist, err := s.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		err = wrapSpotifyError(ctx, err)
		var serr spotify.Error
		if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		// transient failures are not cached
		return err
	}

	var result error
	if playlist.Owner.ID != userID && !playlist.Collaborative {
		result = fmt.Errorf("%w: %s is owned by %s, not %s", shared.ErrPlaylistNotOwned, playlistID, playlist.Owner.ID, userID)
	}

	s.mu.Lock()
	s.verified[key] = result
	s.mu.Unlock()
	return result
}

// AddTracks appends trackIDs to the playlist after verifying userID may modify it.
func (s *SpotifyService) AddTracks(ctx context.Context, userID, playlistID string, trackIDs []string, position *int) error {
	if s.client == nil {
		return shared.ErrNotAuthenticated
	}
	if position != nil {
		return fmt.Errorf("%w: positional insert", shared.ErrNotImplemented)
	}
	if len(trackIDs) == 0 {
		return nil
	}

	if err := s.VerifyPlaylist(ctx, userID, playlistID); err != nil {
		return err
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return wrapSpotifyError(ctx, err)
	}
	return nil
}

// wrapSpotifyError maps client errors onto shared sentinels, keeping the original in the chain.
func wrapSpotifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}

	var serr spotify.Error
	if errors.As(err, &serr) {
		switch serr.Status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
	}

	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}

// refreshableTokenSource reports every access token that differs from the last one seen.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu        sync.Mutex
	lastToken string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	r.mu.Lock()
	changed := token.AccessToken != r.lastToken
	r.lastToken = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
