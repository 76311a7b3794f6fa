package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/notify"
	"github.com/mcdev12/timespeed/go/internal/timespeed/orchestrator"
	"github.com/mcdev12/timespeed/go/internal/timespeed/sim"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid settings")
	}
	setupLogging(settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	world := sim.NewWorld(farmer(settings))
	local := world.LocalPlayer()

	log.Info().
		Str("role", string(settings.Role)).
		Int64("player_id", settings.PlayerID).
		Str("session_id", settings.SessionID).
		Str("transport", string(settings.Transport)).
		Str("config_path", settings.ConfigPath).
		Msg("starting timespeed")

	bus, err := connectBus(ctx, settings, local)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect transport")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close transport")
		}
	}()

	deps := orchestrator.Deps{
		ModID:     settings.ModID,
		Game:      world,
		Display:   notify.LogDisplay{},
		Transport: bus,
		Store:     config.NewFileStore(settings.ConfigPath),
	}
	if settings.IsHost() && settings.DatabaseURL != "" {
		recorder, closeLedger, err := openLedger(ctx, settings)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open ledger")
		}
		defer closeLedger()
		deps.Recorder = recorder
	}

	orch, err := orchestrator.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create orchestrator")
	}

	commands := sim.ReadCommands(ctx, os.Stdin)
	loop := sim.NewLoop(nil, world, orch, bus, commands, settings.TickRate)

	if srv := hostServer(settings, bus, loop); srv != nil {
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("HTTP server shutdown failed")
			}
		}()
	}

	if done := hostGone(bus); done != nil {
		go func() {
			select {
			case <-done:
				log.Warn().Msg("lost connection to host, shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("game loop failed")
	}
	log.Info().Msg("timespeed shutdown complete")
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
