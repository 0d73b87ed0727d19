package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	want := &Config{
		DefaultSource:       "melon",
		SpotifyClientID:     "id",
		SpotifyClientSecret: "secret",
		SubsonicURL:         "https://music.example.com",
		SubsonicUsername:    "alice",
		SubsonicPassword:    "pw",
		Parallelism:         4,
	}
	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	got := DefaultConfig()
	if err := LoadConfig(path, got); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"), cfg); err == nil {
		t.Fatal("LoadConfig accepted a missing file")
	}
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"SpotifyClientID":"id"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadConfig(path, cfg); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DefaultSource != "spotify" {
		t.Errorf("DefaultSource = %q, want default preserved", cfg.DefaultSource)
	}
	if cfg.SpotifyClientID != "id" {
		t.Errorf("SpotifyClientID = %q", cfg.SpotifyClientID)
	}
}

func TestCredentialChecks(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HasSpotifyCredentials() || cfg.HasSubsonicCredentials() {
		t.Error("empty config should have no credentials")
	}

	cfg.SpotifyClientID = "id"
	if cfg.HasSpotifyCredentials() {
		t.Error("id without secret is not a full credential")
	}
	cfg.SpotifyClientSecret = "secret"
	if !cfg.HasSpotifyCredentials() {
		t.Error("id and secret should count as credentials")
	}

	cfg.SubsonicURL = "https://music.example.com"
	cfg.SubsonicUsername = "alice"
	cfg.SubsonicPassword = "pw"
	if !cfg.HasSubsonicCredentials() {
		t.Error("full subsonic credentials not detected")
	}
}
