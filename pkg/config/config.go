// Package config loads, defaults, and validates the catalogd configuration,
// and holds the factories that turn it into stores and adapters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ybecker/catalogd/pkg/adapter/tcp"
	"github.com/ybecker/catalogd/pkg/adapter/ws"
)

// Config is the complete catalogd configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (CATALOGD_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store configuration pattern: Catalog and Accounts each carry a Type field
// plus one map section per backend; only the section matching the selected
// type is decoded.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings.
	Server ServerConfig `mapstructure:"server"`

	// Catalog selects and configures the file catalog backend.
	Catalog CatalogStoreConfig `mapstructure:"catalog"`

	// Accounts selects and configures the account backend.
	Accounts AccountStoreConfig `mapstructure:"accounts"`

	// Adapters contains protocol adapter configurations.
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format selects text or json output.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Login configures login throttling.
	Login LoginConfig `mapstructure:"login"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on.
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// LoginConfig throttles login attempts. Throttled logins fail exactly like
// bad credentials.
type LoginConfig struct {
	// RateLimit is the allowed logins per second across all clients. 0
	// disables throttling.
	RateLimit uint `mapstructure:"rate_limit"`

	// RateBurst is the burst size; 0 defaults to RateLimit.
	RateBurst uint `mapstructure:"rate_burst"`
}

// CatalogStoreConfig selects the catalog backend.
type CatalogStoreConfig struct {
	// Type is one of: memory, badger, sqlite, s3.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sqlite s3"`

	// Badger is used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`

	// SQLite is used when Type = "sqlite".
	SQLite map[string]any `mapstructure:"sqlite"`

	// S3 is used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// AccountStoreConfig selects the account backend. Accounts are too hot for
// object storage, so there is no s3 option here.
type AccountStoreConfig struct {
	// Type is one of: memory, badger, sqlite.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sqlite"`

	// Badger is used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`

	// SQLite is used when Type = "sqlite".
	SQLite map[string]any `mapstructure:"sqlite"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// TCP is the primary wire protocol adapter.
	TCP tcp.Config `mapstructure:"tcp"`

	// WS is the WebSocket adapter.
	WS ws.Config `mapstructure:"ws"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/catalogd/config.yaml); a missing file there is fine and
// yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// CATALOGD_LOGGING_LEVEL=DEBUG style overrides.
	v.SetEnvPrefix("CATALOGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file: run on defaults.
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/catalogd, falling back to
// ~/.config/catalogd, or "." when no home directory is available.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "catalogd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "catalogd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
