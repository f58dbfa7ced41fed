package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/plmigrate/internal/server"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization-code flow for Spotify.
//
// Starts a local callback server, opens the browser for user consent, and saves the exchanged tokens to config.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or SPOTIFY_ID/SPOTIFY_SECRET",
			shared.ErrMissingCredentials, r.configPath)
	}

	srv, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.WithHTTPClient(r.httpClient))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, config, srv, "authorization")
	if err != nil {
		return err
	}

	if err := r.storeToken(config, token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: plmigrate migrate --file Library.xml --id <playlist> --user <username>\n")
	return nil
}

// AuthStatus reports which account the saved token belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if !config.Credentials.Spotify.HasToken() {
		return r.writePlain("✗ Not authenticated. Run: plmigrate auth\n")
	}

	srv, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.WithHTTPClient(r.httpClient))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}
	srv.SetTokenRefreshCallback(r.saveToken(config, r.configPath))

	if err := srv.OAuthenticate(ctx, config.Credentials.Spotify.Token()); err != nil {
		return err
	}

	id, name, err := srv.Me(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Authenticated as %s (%s)\n", name, id)
	if expiry := config.Credentials.Spotify.Expiry; expiry != "" {
		r.writePlain("  Access token expires: %s\n", expiry)
	}
	return nil
}

// reauthorize runs the OAuth2 flow again and re-authenticates srv with the new token.
func (r *Runner) reauthorize(ctx context.Context, config *shared.Config, srv services.OAuthService) error {
	token, err := r.doOAuth(ctx, config, srv, "reauthorization")
	if err != nil {
		return err
	}

	if err := r.storeToken(config, token); err != nil {
		return err
	}

	if err := srv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Reauthorization successful")
	r.writePlain("✓ New tokens saved to %s\n", r.configPath)
	return nil
}

func (r *Runner) storeToken(config *shared.Config, token *oauth2.Token) error {
	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state).WithHTTPClient(r.httpClient)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	callback, err := server.StartCallbackServer(serverAddr, router)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("started OAuth server for %s at %v", prefix, callback.Addr())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := callback.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := oauthHandler.Await(ctx, authTimeout, callback.Errors())
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}

// handleSpotifyAuthError checks if an error is a token expiration error and triggers reauthorization if needed.
func (r *Runner) handleSpotifyAuthError(ctx context.Context, err error, cmd *cli.Command) (bool, error) {
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, shared.ErrTokenExpired) {
		return false, err
	}

	srv, ok := r.spotify.(services.OAuthService)
	if !ok {
		return true, fmt.Errorf("%w: spotify service does not support reauthorization", err)
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...\n")

	config, loadErr := r.loadConfig(cmd)
	if loadErr != nil {
		return true, fmt.Errorf("failed to load config: %w", loadErr)
	}

	if reauthErr := r.reauthorize(ctx, config, srv); reauthErr != nil {
		return true, fmt.Errorf("reauthorization failed: %w", reauthErr)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...\n")
	return true, nil
}
