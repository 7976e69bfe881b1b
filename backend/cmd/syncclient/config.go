package main

import (
	"fmt"

	"github.com/adwski/scenesync/client/config"
	"github.com/spf13/pflag"
)

func loadConfig(args []string) (config.Config, error) {
	fs := pflag.NewFlagSet("syncclient", pflag.ContinueOnError)
	var (
		path     = fs.StringP("config", "c", "", "path to TOML config file")
		server   = fs.StringP("server", "s", "", "relay websocket url")
		role     = fs.StringP("role", "r", "", "host or join")
		room     = fs.String("room", "", "room code to join")
		tick     = fs.DurationP("tick", "t", 0, "sampling interval")
		trackAll = fs.Bool("track-all", false, "sync every object, not only the selected one")
		logLevel = fs.StringP("log-level", "l", "", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return config.Config{}, err
	}

	if fs.Changed("server") {
		cfg.ServerURL = *server
	}
	if fs.Changed("role") {
		cfg.Role = *role
	}
	if fs.Changed("room") {
		cfg.RoomCode = *room
		if !fs.Changed("role") {
			cfg.Role = config.RoleJoin
		}
	}
	if fs.Changed("tick") {
		cfg.TickInterval = *tick
	}
	if fs.Changed("track-all") {
		cfg.TrackAll = *trackAll
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	if err = cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
