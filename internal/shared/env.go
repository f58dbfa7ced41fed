package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the Spotify credentials in config.toml.
const (
	EnvSpotifyID          = "SPOTIFY_ID"
	EnvSpotifySecret      = "SPOTIFY_SECRET"
	EnvSpotifyRedirectURI = "SPOTIFY_REDIRECT_URI"
)

// LoadEnv loads KEY=VALUE pairs from a .env file into the process environment.
//
// A missing file is not an error. Variables already set in the environment win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overwrites Spotify credentials with any values set in the environment.
func ApplyEnv(config *Config) {
	if v := os.Getenv(EnvSpotifyID); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvSpotifySecret); v != "" {
		config.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvSpotifyRedirectURI); v != "" {
		config.Credentials.Spotify.RedirectURI = v
	}
}
