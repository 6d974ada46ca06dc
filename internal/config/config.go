// Package config provides configuration management for omnihost.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the application configuration structure
type Config struct {
	Inventory    string `mapstructure:"inventory"`     // Path to the inventory file
	Parallel     int    `mapstructure:"parallel" validate:"min=1,max=20"`
	Timeout      int    `mapstructure:"timeout" validate:"min=1"` // Per-attempt timeout in seconds
	Retries      int    `mapstructure:"retries" validate:"min=0"`
	Output       string `mapstructure:"output" validate:"oneof=interactive json csv quiet plain compact"`
	DryRun       bool   `mapstructure:"dry-run"`
	ShowProgress bool   `mapstructure:"progress"`
	Quiet        bool   `mapstructure:"quiet"`
	LogLevel     string `mapstructure:"log-level" validate:"oneof=debug info error"`
	LogFormat    string `mapstructure:"log-format" validate:"oneof=json text"`
	AuditEnabled bool   `mapstructure:"audit"`
	AuditPath    string `mapstructure:"audit-path"`
}

// Manager defines the interface for configuration management
type Manager interface {
	// Load reads configuration from all sources (files, env vars)
	Load() (*Config, error)

	// SetDefaults establishes default configuration values
	SetDefaults()

	// Validate ensures configuration values are valid and consistent
	Validate(config *Config) error
}

// ViperManager implements the Manager interface using Viper
type ViperManager struct {
	v        *viper.Viper
	validate *validator.Validate
}

// NewManager creates a new configuration manager
func NewManager() Manager {
	return &ViperManager{
		v:        viper.New(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SetDefaults establishes default configuration values
func (m *ViperManager) SetDefaults() {
	m.v.SetDefault("inventory", "")
	m.v.SetDefault("parallel", 5)
	m.v.SetDefault("timeout", 30)
	m.v.SetDefault("retries", 0)
	m.v.SetDefault("output", "interactive")
	m.v.SetDefault("dry-run", false)
	m.v.SetDefault("progress", false)
	m.v.SetDefault("quiet", false)
	m.v.SetDefault("log-level", "info")
	m.v.SetDefault("log-format", "text")
	m.v.SetDefault("audit", true)
	m.v.SetDefault("audit-path", "")
}

// Load reads configuration from all sources with proper precedence
func (m *ViperManager) Load() (*Config, error) {
	m.SetDefaults()

	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")

	// Config paths in precedence order (current dir highest, system lowest)
	m.v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		m.v.AddConfigPath(filepath.Join(homeDir, ".config", "omnihost"))
		m.v.AddConfigPath(filepath.Join(homeDir, ".omnihost"))
	}
	m.v.AddConfigPath("/etc/omnihost/")

	m.v.SetEnvPrefix("OMNIHOST")
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := m.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate ensures configuration values are valid and consistent
func (m *ViperManager) Validate(config *Config) error {
	if err := m.validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid value for %s (constraint: %s)", strings.ToLower(f.Field()), f.Tag())
		}
		return err
	}
	return nil
}
