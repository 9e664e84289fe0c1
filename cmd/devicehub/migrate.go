package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *database.DB, log *logging.Logger) error {
					if err := db.Migrate(ctx); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					log.Info("database migrations complete")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *database.DB, log *logging.Logger) error {
					if err := db.MigrateDown(ctx); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					log.Info("latest migration rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *database.DB, _ *logging.Logger) error {
					status, err := db.MigrationStatus(ctx)
					if err != nil {
						return fmt.Errorf("reading migration status: %w", err)
					}
					printMigrationStatus(cmd.OutOrStdout(), status)
					return nil
				})
			},
		},
	)
	return cmd
}

// withDatabase loads config, opens the database, and runs fn.
func withDatabase(ctx context.Context, opts *rootOptions, fn func(context.Context, *database.DB, *logging.Logger) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Nothing useful to do on close failure here

	return fn(ctx, db, log)
}

func printMigrationStatus(w io.Writer, status database.MigrationStatus) {
	for _, m := range status.Applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(status.Applied) == 0 && len(status.Pending) == 0 {
		fmt.Fprintln(w, "no migrations")
	}
}
