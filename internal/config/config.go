package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	RequestTimeout = 30 * time.Second
)

// Config holds credentials and pipeline settings.
type Config struct {
	DefaultSource       string `json:"DefaultSource"`
	SpotifyClientID     string `json:"SpotifyClientID"`
	SpotifyClientSecret string `json:"SpotifyClientSecret"`
	SubsonicURL         string `json:"SubsonicURL"`
	SubsonicUsername    string `json:"SubsonicUsername"`
	SubsonicPassword    string `json:"SubsonicPassword"`
	Parallelism         int    `json:"Parallelism"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultSource: "spotify",
		Parallelism:   1,
	}
}

// DefaultPath returns the config file location under the XDG config dir.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "tagfetch", "config.json")
}

// HasSpotifyCredentials reports whether Spotify client credentials are set.
func (cfg *Config) HasSpotifyCredentials() bool {
	return cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != ""
}

// HasSubsonicCredentials reports whether Subsonic server credentials are set.
func (cfg *Config) HasSubsonicCredentials() bool {
	return cfg.SubsonicURL != "" && cfg.SubsonicUsername != "" && cfg.SubsonicPassword != ""
}

// CreateDirIfNotExists creates a directory if it does not exist
func CreateDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a JSON file
func SaveConfig(filePath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
