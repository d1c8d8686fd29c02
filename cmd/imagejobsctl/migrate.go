package main

import (
	"time"

	"github.com/spf13/cobra"

	"imagejobs/internal/infra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	url, err := resolveDatabaseURL()
	if err != nil {
		return err
	}
	start := time.Now()
	logger := cliLogger("migrate")
	if err := infra.Migrate(cmd.Context(), url, logger); err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("migrate: up to date")
	return nil
}
