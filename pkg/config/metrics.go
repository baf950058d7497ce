package config

import (
	"github.com/ybecker/catalogd/pkg/metrics"
)

// InitializeMetrics sets up the Prometheus registry and the metrics HTTP
// server when enabled. Returns nil when metrics are disabled; adapter
// metrics constructors then hand out no-op collectors on their own.
//
// Must run before any adapter is created, because collectors register
// against the global registry at construction.
func InitializeMetrics(cfg *Config) *metrics.Server {
	if !cfg.Server.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()
	return metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})
}
