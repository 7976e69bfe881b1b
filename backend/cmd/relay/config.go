package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

type config struct {
	WSListenAddr  string `env:"SCENESYNC_WS_ADDR" envDefault:":8765"`
	APIListenAddr string `env:"SCENESYNC_API_ADDR" envDefault:":8080"`
	LogLevel      string `env:"SCENESYNC_LOG_LEVEL" envDefault:"info"`
}

// loadConfig reads env first, flags given on the command line win.
func loadConfig(args []string) (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	fs.StringVarP(&cfg.WSListenAddr, "ws-listen-addr", "w", cfg.WSListenAddr, "websocket relay listen address")
	fs.StringVarP(&cfg.APIListenAddr, "api-listen-addr", "a", cfg.APIListenAddr, "ops api listen address (health, rooms, metrics)")
	fs.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return config{}, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}
