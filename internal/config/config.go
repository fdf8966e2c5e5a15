// Package config assembles the bot configuration from the reusable
// core sections plus registration specific settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/stemly/regbot/core/config"
	coredatabase "github.com/stemly/regbot/core/database"
	"github.com/stemly/regbot/internal/identity"
)

// IdentityConfig holds settings for the external identity service.
type IdentityConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"IDENTITY_BASE_URL"`
	Token          string `yaml:"token" envconfig:"IDENTITY_TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"IDENTITY_TIMEOUT_SECONDS"`
	// PlaceholderDomain backs synthetic emails for children without
	// any contact of their own.
	PlaceholderDomain string `yaml:"placeholder_domain" envconfig:"IDENTITY_PLACEHOLDER_DOMAIN"`
}

// SupportConfig points support-chat forwarding at a group.
type SupportConfig struct {
	GroupID int64 `yaml:"group_id" envconfig:"SUPPORT_GROUP_ID"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Identity IdentityConfig      `yaml:"identity"`
	Support  SupportConfig       `yaml:"support"`
}

// Load reads the YAML file, overlays environment variables, and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if strings.TrimSpace(cfg.Identity.BaseURL) == "" {
		return fmt.Errorf("identity.base_url is required")
	}
	if cfg.Identity.TimeoutSeconds < 0 {
		return fmt.Errorf("identity.timeout_seconds must be >= 0")
	}

	return nil
}

// IdentityClient converts the section into an identity client config.
func (c *Config) IdentityClient() identity.Config {
	return identity.Config{
		BaseURL:           c.Identity.BaseURL,
		Token:             c.Identity.Token,
		Timeout:           time.Duration(c.Identity.TimeoutSeconds) * time.Second,
		PlaceholderDomain: c.Identity.PlaceholderDomain,
	}
}
