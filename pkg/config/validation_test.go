package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultConfig(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidateRequiresAnAdapter(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.TCP.Enabled = false
	cfg.Adapters.WS.Enabled = false

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one adapter")
}

func TestValidateRejectsSharedAdapterPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.TCP.Enabled = true
	cfg.Adapters.WS.Enabled = true
	cfg.Adapters.WS.Port = cfg.Adapters.TCP.Port

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share port")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"

	require.Error(t, Validate(cfg))
}

func TestValidateAcceptsLowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.TCP.Port = 70000

	require.Error(t, Validate(cfg))
}
