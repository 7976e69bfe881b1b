package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/adwski/scenesync/client/engine"
	"github.com/adwski/scenesync/client/scene"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	sc := scene.New()
	eng := engine.NewEngine(engine.Config{
		URL:          cfg.ServerURL,
		Scene:        sc,
		Logger:       &logger,
		TickInterval: cfg.TickInterval,
		TrackAll:     cfg.TrackAll,
		OnRoom: func(roomID string) {
			logger.Info().Str("room", roomID).Msg("in room")
		},
		OnStatus: func(st engine.Status) {
			logger.Info().Stringer("status", st).Msg("connection status")
			if st == engine.Disconnected {
				logger.Info().Msg("session ended, type connect to start another")
			}
		},
		OnError: func(msg string) {
			logger.Error().Str("message", msg).Msg("relay error")
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = eng.Connect(ctx, engine.Role(cfg.Role), cfg.RoomCode); err != nil {
		logger.Fatal().Err(err).Msg("cannot connect")
	}

	sh := &shell{ctx: ctx, scene: sc, engine: eng, out: os.Stdout}
	lines := make(chan string)
	go readLines(os.Stdin, lines)

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Warn().Msg("interrupted")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := sh.exec(line); quit {
				break loop
			}
		}
	}

	eng.Disconnect()
	eng.Wait()
}
