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

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker.",
	Long: `Starts the worker process: a pool of consumers that pop work from
the queue, run the import processor, and deliver signed webhooks. Safe to run
alongside other workers; duplicate deliveries are tolerated.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		worker, err := app.NewWorker(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize worker: %w", err)
		}

		worker.Start(ctx)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("received shutdown signal")

		cancel()
		worker.Stop()
		return nil
	},
}
