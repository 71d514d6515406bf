// Trip Planner - turns YouTube travel videos into a day-by-day itinerary.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/ashureev/trip-planner/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var scenario string

	root := &cobra.Command{
		Use:           "tripplanner",
		Short:         "Plan trips from YouTube travel videos",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&scenario, "scenario", "", "scenario file seeding new sessions (overrides TRIP_PLANNER_SCENARIO)")

	load := func() (*config.Config, error) {
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if scenario != "" {
			cfg.ScenarioPath = scenario
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newChatCmd(load))
	return root
}

func newLogger(level slog.Level) *slog.Logger {
	return newLoggerTo(os.Stdout, level)
}

func newLoggerTo(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
