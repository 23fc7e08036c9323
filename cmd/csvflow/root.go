package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/csvflow/csvflow/internal/config"
	"github.com/csvflow/csvflow/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "csvflow",
	Short: "csvflow runs the import pipeline.",
	Long: `csvflow is the import job pipeline: an HTTP intake server, a queue
worker that processes accepted row batches and delivers webhooks, and a
migration runner. Configuration comes from the environment and an optional
.env file.`,
	SilenceUsage: true,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadEnv loads configuration and builds the process logger every subcommand
// shares.
func loadEnv() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.Logging, nil)
	slog.SetDefault(log)
	return cfg, log, nil
}
