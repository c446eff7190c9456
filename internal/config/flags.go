package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   websocket URL of the remote document store
//	-n string   remote namespace
//	-d string   remote database
//	-l string   local SQLite DSN
//	-i int      heartbeat interval in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-r", "-n", "-d", "-l", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteEndpointURL, "r", cfg.RemoteEndpointURL, "remote document store websocket URL")
	fs.StringVar(&cfg.RemoteNamespace, "n", cfg.RemoteNamespace, "remote namespace")
	fs.StringVar(&cfg.RemoteDatabase, "d", cfg.RemoteDatabase, "remote database")
	fs.StringVar(&cfg.LocalDSN, "l", cfg.LocalDSN, "local SQLite DSN")
	heartbeat := fs.Int("i", int(cfg.HeartbeatInterval.Seconds()), "heartbeat interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HeartbeatInterval = time.Duration(*heartbeat) * time.Second
}
