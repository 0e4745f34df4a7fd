// Package config loads the YAML configuration for the host and
// viewer binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HostConfig is the complete host-process configuration.
type HostConfig struct {
	Server   HostServerConfig `yaml:"server"`
	Quality  QualityConfig    `yaml:"quality"`
	Database DatabaseConfig   `yaml:"database"`
	Redis    RedisConfig      `yaml:"redis"`
	Security SecurityConfig   `yaml:"security"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// HostServerConfig holds the QUIC listener and TLS settings.
type HostServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	TLSCert    string `yaml:"tls_cert"` // empty: generate an ephemeral self-signed cert
	TLSKey     string `yaml:"tls_key"`
	StatsAddr  string `yaml:"stats_addr"` // /health and /stats HTTP endpoint
}

// QualityConfig seeds the adaptive quality controller.
type QualityConfig struct {
	InitialMode string `yaml:"initial_mode"` // Ultra, High, Medium, Low, Minimal
}

// DatabaseConfig holds PostgreSQL audit-log settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds the session-token cache settings.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SecurityConfig holds access-code and session-token policy.
type SecurityConfig struct {
	AccessCodeValidity   time.Duration `yaml:"access_code_validity"`
	SessionTokenValidity time.Duration `yaml:"session_token_validity"`
	MaxSessionsTotal     int           `yaml:"max_sessions_total"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	OutputFile string `yaml:"output_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ViewerConfig is the complete viewer-process configuration.
type ViewerConfig struct {
	Server  ViewerServerConfig `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
}

// ViewerServerConfig holds the host address the viewer dials.
type ViewerServerConfig struct {
	HostAddr           string `yaml:"host_addr"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // dev-mode TLS trust for self-signed host certs
}

// LoadHostConfig loads and validates a host config from a YAML file.
func LoadHostConfig(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read host config: %w", err)
	}
	var cfg HostConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse host config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid host config: %w", err)
	}
	return &cfg, nil
}

func (c *HostConfig) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "0.0.0.0:7890"
	}
	if c.Server.StatsAddr == "" {
		c.Server.StatsAddr = "127.0.0.1:7891"
	}
	if c.Quality.InitialMode == "" {
		c.Quality.InitialMode = "High"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Security.AccessCodeValidity == 0 {
		c.Security.AccessCodeValidity = 300 * time.Second
	}
	if c.Security.SessionTokenValidity == 0 {
		c.Security.SessionTokenValidity = 12 * time.Hour
	}
	if c.Security.MaxSessionsTotal == 0 {
		c.Security.MaxSessionsTotal = 8
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
}

func (c *HostConfig) validate() error {
	validModes := map[string]bool{"Ultra": true, "High": true, "Medium": true, "Low": true, "Minimal": true}
	if !validModes[c.Quality.InitialMode] {
		return fmt.Errorf("invalid initial quality mode: %s", c.Quality.InitialMode)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Security.MaxSessionsTotal < 1 {
		return fmt.Errorf("max_sessions_total must be at least 1")
	}
	return nil
}

// GenerateDefaultHostConfig returns a host config populated with
// every default, for `beamdesk-host init-config`.
func GenerateDefaultHostConfig() *HostConfig {
	var cfg HostConfig
	cfg.setDefaults()
	cfg.Database.Host = "localhost"
	cfg.Database.User = "beamdesk"
	cfg.Database.DBName = "beamdesk"
	cfg.Redis.Host = "localhost"
	return &cfg
}

// LoadViewerConfig loads and validates a viewer config from a YAML
// file.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read viewer config: %w", err)
	}
	var cfg ViewerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse viewer config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid viewer config: %w", err)
	}
	return &cfg, nil
}

func (c *ViewerConfig) setDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *ViewerConfig) validate() error {
	if c.Server.HostAddr == "" {
		return fmt.Errorf("server.host_addr is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// WriteConfigFile marshals cfg (a *HostConfig or *ViewerConfig) to a
// YAML file at path.
func WriteConfigFile(cfg interface{}, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
