package main

import (
	"github.com/spf13/cobra"

	"github.com/csvflow/csvflow/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit.",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}
		return app.Migrate(cfg, log)
	},
}
