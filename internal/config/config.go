// Package config holds runtime settings for the peerlink client.
package config

import "time"

// PlaceholderEndpoint is the value shipped in sample configs. It is treated
// the same as an empty endpoint: the client starts in local-only mode.
const PlaceholderEndpoint = "wss://example.invalid/rpc"

// Config holds runtime settings for the peerlink client.
//
// Fields:
//   - RemoteEndpointURL: websocket URL of the remote document store. Empty
//     or placeholder means no remote store is configured and the client
//     runs against the local simulated store only.
//   - RemoteNamespace/RemoteDatabase: logical namespace selection on the
//     remote store.
//   - LocalDSN: SQLite DSN for the local store and vault.
//   - HeartbeatInterval: how often presence (status/lastSeen) is pushed.
type Config struct {
	RemoteEndpointURL string
	RemoteNamespace   string
	RemoteDatabase    string
	LocalDSN          string
	HeartbeatInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteEndpointURL = ""
	c.RemoteNamespace = "peerlink"
	c.RemoteDatabase = "main"
	c.LocalDSN = "peerlink.db"
	c.HeartbeatInterval = 15 * time.Second
}

// RemoteConfigured reports whether a usable remote endpoint is present.
// Absence is not an error: it routes initialization straight to the local
// store.
func (c *Config) RemoteConfigured() bool {
	return c.RemoteEndpointURL != "" && c.RemoteEndpointURL != PlaceholderEndpoint
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
