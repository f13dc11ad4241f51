package main

import (
	"github.com/spf13/cobra"

	"storeadmin/api/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

func migrateRun(dir database.Direction, name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(pool, dir); err != nil {
			return err
		}
		logger.Info().Str("direction", name).Msg("migrations applied")
		return nil
	}
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE:  migrateRun(database.Up, "up"),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE:  migrateRun(database.Down, "down"),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
