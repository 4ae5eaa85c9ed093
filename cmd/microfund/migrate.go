package main

import (
	"fmt"
	"log/slog"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/storage"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has all the required
tables and indexes for the application to function properly.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	store, cleanup, err := openStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	if status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		common.LogInfo("Database migration status", common.Fields{
			"current_version": current,
			"latest_version":  storage.ExpectedSchemaVersion,
		})
		return nil
	}

	slog.Info("Running database migrations...")
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Database migrations completed")
	return nil
}
