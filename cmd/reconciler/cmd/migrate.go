package cmd

import (
	"fmt"

	"transfer-reconciliation-service/internal/store"
	"transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := runMigrations(cmd, migrate.Up)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations!\n", n)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := runMigrations(cmd, migrate.Down)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migrations!\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrations(cmd *cobra.Command, direction migrate.MigrationDirection) (int, error) {
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	name := "migrate_" + directionName(direction)
	log := logger.GetGlobalLogger().WithComponent("migrate")

	var n int
	err = logger.TimedOperation(name, log, func() error {
		var migrateErr error
		n, migrateErr = store.Migrate(db, direction)
		return migrateErr
	})
	if err != nil {
		return n, errors.PersistenceError(errors.CodeMigrationFailed, name, err)
	}
	return n, nil
}

func directionName(direction migrate.MigrationDirection) string {
	if direction == migrate.Down {
		return "down"
	}
	return "up"
}
