// Package config loads client settings: defaults, then an optional TOML
// file, then SCENESYNC_* environment variables. Command line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DefaultServerURL    = "ws://localhost:8765"
	DefaultTickInterval = 50 * time.Millisecond
	DefaultLogLevel     = "info"

	RoleHost = "host"
	RoleJoin = "join"
)

var (
	ErrInvalidRole = errors.New("role must be host or join")
	ErrNoRoomCode  = errors.New("join requires a room code")
	ErrNoServer    = errors.New("server url is empty")
)

type Config struct {
	ServerURL    string        `env:"SCENESYNC_SERVER_URL"`
	Role         string        `env:"SCENESYNC_ROLE"`
	RoomCode     string        `env:"SCENESYNC_ROOM"`
	TickInterval time.Duration `env:"SCENESYNC_TICK"`
	TrackAll     bool          `env:"SCENESYNC_TRACK_ALL"`
	LogLevel     string        `env:"SCENESYNC_LOG_LEVEL"`
}

type fileConfig struct {
	ServerURL    string `toml:"server_url"`
	Role         string `toml:"role"`
	RoomCode     string `toml:"room"`
	TickInterval string `toml:"tick_interval"`
	TrackAll     bool   `toml:"track_all"`
	LogLevel     string `toml:"log_level"`
}

func Default() Config {
	return Config{
		ServerURL:    DefaultServerURL,
		Role:         RoleHost,
		TickInterval: DefaultTickInterval,
		LogLevel:     DefaultLogLevel,
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("server_url") {
		cfg.ServerURL = strings.TrimSpace(raw.ServerURL)
	}
	if meta.IsDefined("role") {
		cfg.Role = strings.TrimSpace(raw.Role)
	}
	if meta.IsDefined("room") {
		cfg.RoomCode = strings.TrimSpace(raw.RoomCode)
	}
	if meta.IsDefined("tick_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TickInterval))
		if err != nil {
			return fmt.Errorf("parse tick_interval: %w", err)
		}
		cfg.TickInterval = d
	}
	if meta.IsDefined("track_all") {
		cfg.TrackAll = raw.TrackAll
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

func (c Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServer
	}
	switch c.Role {
	case RoleHost:
	case RoleJoin:
		if c.RoomCode == "" {
			return ErrNoRoomCode
		}
	default:
		return ErrInvalidRole
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	return nil
}
