package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/uebliche/dockbridge/internal/app"
	"github.com/uebliche/dockbridge/internal/config"
)

func newRunCmd(configPath *string, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reconciler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to load configuration")
			}

			setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

			log.Info().Str("config", *configPath).Str("version", version).Msg("Starting dockbridge")

			application, err := app.New(cfg, version)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create application")
			}

			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			if err := application.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Error during shutdown")
				return err
			}
			return nil
		},
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
