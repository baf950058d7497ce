package config

import (
	"fmt"

	"github.com/ybecker/catalogd/pkg/adapter"
	"github.com/ybecker/catalogd/pkg/adapter/tcp"
	"github.com/ybecker/catalogd/pkg/adapter/ws"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters, each with its own
// call metrics labelled by protocol.
func CreateAdapters(cfg *Config, coord *coordinator.Coordinator) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.TCP.Enabled {
		adapters = append(adapters, tcp.New(cfg.Adapters.TCP, coord, metrics.NewCallMetrics("tcp")))
	}
	if cfg.Adapters.WS.Enabled {
		adapters = append(adapters, ws.New(cfg.Adapters.WS, coord, metrics.NewCallMetrics("ws")))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}
	return adapters, nil
}
