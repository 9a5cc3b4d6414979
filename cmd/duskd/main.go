package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/duskd/internal/app"
	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/db"
	"github.com/dokzlo13/duskd/internal/geo"
	"github.com/dokzlo13/duskd/internal/instance"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

var configDir string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duskd",
		Short: "Sunset-aware display temperature and gamma daemon",
		Long: "duskd shifts display color temperature and gamma between day and\n" +
			"night values, following configured times or the computed position\n" +
			"of the sun, and drives the compositor backend to apply them.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}

	cmd.PersistentFlags().StringVarP(&configDir, "config", "c", "",
		"configuration directory (default: $XDG_CONFIG_HOME/duskd)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Console logging until the daemon config takes over.
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cmd.AddCommand(
		newRestartCmd(),
		newGeoCmd(),
	)

	return cmd
}

func runDaemon() error {
	paths, err := config.ResolvePaths(configDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	setupLogging(cfg.Log)

	lock, err := instance.Acquire(paths.LockFile())
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			return fmt.Errorf("%w; use 'duskd restart' to reload it", err)
		}
		return err
	}
	defer lock.Release()

	log.Logger = log.Logger.With().Str("instance", lock.ID()).Logger()
	log.Info().Str("version", version).Str("config", cfg.Source).Msg("Starting duskd")

	application, err := app.New(cfg, paths)
	if err != nil {
		return err
	}

	ctx, cancel := app.SignalContext(application.Events())
	defer cancel()

	return application.Run(ctx)
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Ask the running daemon to reload its configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.ResolvePaths(configDir)
			if err != nil {
				return err
			}
			if err := instance.SignalReload(paths.LockFile()); err != nil {
				return err
			}
			fmt.Println("Reload requested")
			return nil
		},
	}
}

func newGeoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geo <city>",
		Short: "Resolve a city and store its coordinates as the geo override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.ResolvePaths(configDir)
			if err != nil {
				return err
			}

			// Share the daemon's geocache so a repeated lookup stays
			// off the network.
			var cache *geo.Cache
			if database, err := db.Open(paths.DatabaseFile()); err == nil {
				defer database.Close()
				cache = geo.NewCache(database.DB)
			}

			resolver := geo.NewResolver(cache, 10*time.Second)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			loc, err := resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			if err := config.WriteGeoFile(paths, loc.Name, loc.Latitude, loc.Longitude); err != nil {
				return err
			}

			fmt.Printf("%s\n  latitude  %.5f\n  longitude %.5f\nwritten to %s\n",
				loc.Name, loc.Latitude, loc.Longitude, paths.GeoFile())
			return nil
		},
	}
}

func setupLogging(cfg config.LogConfig) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.JSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !cfg.UseColors(),
		})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
