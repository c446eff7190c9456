package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "", c.RemoteEndpointURL)
	assert.Equal(t, "peerlink", c.RemoteNamespace)
	assert.Equal(t, "main", c.RemoteDatabase)
	assert.Equal(t, "peerlink.db", c.LocalDSN)
	assert.Equal(t, 15*time.Second, c.HeartbeatInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "peerlink.db", cfg.LocalDSN)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
}

func TestRemoteConfigured(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.False(t, c.RemoteConfigured(), "empty endpoint is not configured")

	c.RemoteEndpointURL = PlaceholderEndpoint
	assert.False(t, c.RemoteConfigured(), "placeholder endpoint is not configured")

	c.RemoteEndpointURL = "ws://127.0.0.1:8000/rpc"
	assert.True(t, c.RemoteConfigured())
}
