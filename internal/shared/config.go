package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Relay       RelayConfig       `toml:"relay"`
	Settings    SettingsConfig    `toml:"settings"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Scope        string `toml:"scope"`
}

// Map converts the Spotify credentials to the map shape consumed by service constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"scope":         s.Scope,
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the one-shot callback server used by the CLI flow.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RelayConfig contains settings for the long-running relay service.
//
// StateStore selects the anti-forgery token backend: "memory" or "redis".
type RelayConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	StateStore    string `toml:"state_store"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
}

// SettingsConfig contains user preferences.
type SettingsConfig struct {
	// AutoReauthorize prints a fresh authorization URL whenever the
	// session is found to be invalid, instead of waiting for an explicit
	// login command.
	AutoReauthorize bool `toml:"auto_reauthorize"`
}

// EnvCredentials are provider secrets supplied through the environment.
//
// Required by the relay service at startup; absence is fatal at launch.
type EnvCredentials struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID,notEmpty"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET,notEmpty"`
	RedirectURI  string `env:"SPOTIFY_REDIRECT_URI"`
}

// LoadEnvCredentials reads provider secrets from the environment, after
// loading a .env file when one is present.
func LoadEnvCredentials() (*EnvCredentials, error) {
	_ = godotenv.Load()

	var creds EnvCredentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}

	return &creds, nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
