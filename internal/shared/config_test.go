package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./plmigrate.db" {
			t.Errorf("expected database path ./plmigrate.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Migration.BatchSize != 75 {
			t.Errorf("expected batch size 75, got %d", config.Migration.BatchSize)
		}

		if config.Migration.Market != "US" {
			t.Errorf("expected market US, got %s", config.Migration.Market)
		}

		if config.Migration.SearchTimeout.Duration != 10*time.Second {
			t.Errorf("expected search timeout 10s, got %v", config.Migration.SearchTimeout)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Spotify.HasToken() {
			t.Error("default config should not carry a token")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath, false); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath, false); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("CreateConfigFile Overwrite", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("not = [valid"), 0600); err != nil {
			t.Fatalf("failed to write stale config: %v", err)
		}

		if err := CreateConfigFile(configPath, true); err != nil {
			t.Fatalf("overwrite should succeed: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load overwritten config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("overwritten config database path doesn't match default")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[migration]
batch_size = 50
market = "GB"
search_timeout = "3s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Migration.BatchSize != 50 {
			t.Errorf("expected batch size 50, got %d", config.Migration.BatchSize)
		}
		if config.Migration.Market != "GB" {
			t.Errorf("expected market GB, got %s", config.Migration.Market)
		}
		if config.Migration.SearchTimeout.Duration != 3*time.Second {
			t.Errorf("expected search timeout 3s, got %v", config.Migration.SearchTimeout)
		}
		if config.Migration.MutationTimeout.Duration != 30*time.Second {
			t.Errorf("expected mutation timeout to fall back to 30s, got %v", config.Migration.MutationTimeout)
		}
		if config.Server.Port != 8888 {
			t.Errorf("expected default server port, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("LoadConfig Invalid Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[migration]\nsearch_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		}); err != nil {
			t.Fatalf("failed to update token: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token to be restored")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
		if loaded.Migration.SearchTimeout.Duration != 10*time.Second {
			t.Errorf("expected duration to survive round trip, got %v", loaded.Migration.SearchTimeout)
		}
	})

	t.Run("SaveConfig Unwritable Path", func(t *testing.T) {
		if err := SaveConfig(t.TempDir(), DefaultConfig()); err == nil {
			t.Error("expected error when path is a directory")
		}
	})
}

func TestSpotifyConfigUpdate(t *testing.T) {
	t.Run("keeps refresh token when refreshed token omits it", func(t *testing.T) {
		cfg := SpotifyConfig{RefreshToken: "original"}
		if err := cfg.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RefreshToken != "original" {
			t.Errorf("expected refresh token to be kept, got %q", cfg.RefreshToken)
		}
		if cfg.AccessToken != "new" {
			t.Errorf("expected access token new, got %q", cfg.AccessToken)
		}
	})

	t.Run("nil token", func(t *testing.T) {
		cfg := SpotifyConfig{}
		if err := cfg.Update(nil); err == nil {
			t.Error("expected error for nil token")
		}
	})
}

func TestEnv(t *testing.T) {
	t.Run("LoadEnv missing file", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("missing .env should not be an error, got %v", err)
		}
	})

	t.Run("LoadEnv and ApplyEnv", func(t *testing.T) {
		t.Setenv(EnvSpotifyID, "")
		t.Setenv(EnvSpotifySecret, "")
		os.Unsetenv(EnvSpotifyID)
		os.Unsetenv(EnvSpotifySecret)

		envPath := filepath.Join(t.TempDir(), ".env")
		content := "SPOTIFY_ID=env_id\nSPOTIFY_SECRET=env_secret\n"
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}

		if err := LoadEnv(envPath); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}

		config := DefaultConfig()
		ApplyEnv(config)

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected client secret from env, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Credentials.Spotify.RedirectURI != DefaultConfig().Credentials.Spotify.RedirectURI {
			t.Errorf("redirect uri should be untouched")
		}
	})
}
