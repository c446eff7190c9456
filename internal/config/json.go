package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/flagx"
	"github.com/dmitrijs2005/peerlink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "15s"
// or as integer nanoseconds.
type JsonConfig struct {
	RemoteEndpointURL string         `json:"remote_endpoint_url"`
	RemoteNamespace   string         `json:"remote_namespace"`
	RemoteDatabase    string         `json:"remote_database"`
	LocalDSN          string         `json:"local_dsn"`
	HeartbeatInterval timex.Duration `json:"heartbeat_interval"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. If no file is named, nothing happens. Read or unmarshal
// errors panic; config is resolved once at startup and a broken file should
// stop the program early.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteEndpointURL != "" {
		cfg.RemoteEndpointURL = jc.RemoteEndpointURL
	}
	if jc.RemoteNamespace != "" {
		cfg.RemoteNamespace = jc.RemoteNamespace
	}
	if jc.RemoteDatabase != "" {
		cfg.RemoteDatabase = jc.RemoteDatabase
	}
	if jc.LocalDSN != "" {
		cfg.LocalDSN = jc.LocalDSN
	}
	if jc.HeartbeatInterval.Duration != 0 {
		cfg.HeartbeatInterval = time.Duration(jc.HeartbeatInterval.Duration)
	}
}
