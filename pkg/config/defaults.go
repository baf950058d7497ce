package config

import (
	"strings"
	"time"
)

// Default adapter ports. 1099 is the port of the registry service this one
// replaces; keeping it spares deployed clients a config change.
const (
	DefaultTCPPort     = 1099
	DefaultWSPort      = 1100
	DefaultMetricsPort = 9090
)

// ApplyDefaults fills unset configuration fields. Zero values are replaced,
// explicit values are preserved. Adapter timeout defaults live with the
// adapters themselves and are applied at construction.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyCatalogDefaults(&cfg.Catalog)
	applyAccountsDefaults(&cfg.Accounts)
	applyAdaptersDefaults(&cfg.Adapters)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
	if cfg.Login.RateBurst == 0 {
		cfg.Login.RateBurst = cfg.Login.RateLimit
	}
}

func applyCatalogDefaults(cfg *CatalogStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQLite == nil {
		cfg.SQLite = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

func applyAccountsDefaults(cfg *AccountStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQLite == nil {
		cfg.SQLite = make(map[string]any)
	}
}

func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A freshly loaded config with no file still has to pass validation, so
	// the TCP adapter comes up by default unless explicitly configured off.
	if !cfg.TCP.Enabled && !cfg.WS.Enabled && cfg.TCP.Port == 0 {
		cfg.TCP.Enabled = true
	}

	if cfg.TCP.Port == 0 {
		cfg.TCP.Port = DefaultTCPPort
	}
	if cfg.WS.Port == 0 {
		cfg.WS.Port = DefaultWSPort
	}
}

// GetDefaultConfig returns a Config with every default applied. Useful for
// generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
