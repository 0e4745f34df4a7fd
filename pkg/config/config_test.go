package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadHostConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadHostConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("expected explicit listen_addr to be preserved, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Quality.InitialMode != "High" {
		t.Fatalf("expected default initial mode High, got %s", cfg.Quality.InitialMode)
	}
	if cfg.Security.AccessCodeValidity.Seconds() != 300 {
		t.Fatalf("expected default access code validity of 300s, got %v", cfg.Security.AccessCodeValidity)
	}
}

func TestLoadHostConfigRejectsInvalidQualityMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	if err := os.WriteFile(path, []byte("quality:\n  initial_mode: Extreme\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHostConfig(path); err == nil {
		t.Fatal("expected an invalid initial_mode to be rejected")
	}
}

func TestLoadViewerConfigRequiresHostAddr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadViewerConfig(path); err == nil {
		t.Fatal("expected a missing host_addr to be rejected")
	}
}

func TestGenerateDefaultHostConfigRoundTripsThroughYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	cfg := GenerateDefaultHostConfig()
	if err := WriteConfigFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadHostConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.ListenAddr != cfg.Server.ListenAddr {
		t.Fatalf("round trip mismatch: %s != %s", loaded.Server.ListenAddr, cfg.Server.ListenAddr)
	}
}
