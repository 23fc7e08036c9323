package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/csvflow/csvflow/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP intake server.",
	Long: `Starts the intake server: the authenticated file-based import
endpoints, the importer-key endpoints, and the suggestion passthrough. The
server only publishes work; run a worker to consume it.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		application, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		go func() {
			if err := application.Start(); err != nil {
				log.Error("server error", "error", err)
				cancel()
			}
		}()

		// Wait for shutdown signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			log.Info("received shutdown signal")
		case <-ctx.Done():
			log.Info("context cancelled, shutting down")
		}

		return application.Stop()
	},
}
