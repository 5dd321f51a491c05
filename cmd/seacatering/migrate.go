package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seacatering/subscription-service/internal/config"
	"github.com/seacatering/subscription-service/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations for the configured driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			var applied []string
			switch cfg.DatabaseDriver {
			case config.DriverPostgres:
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("DATABASE_URL is required for postgres migrations")
				}
				pool, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err = store.MigratePostgres(ctx, pool)
				if err != nil {
					return err
				}
			default:
				db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer db.Close()
				applied, err = store.MigrateSQLite(ctx, db)
				if err != nil {
					return err
				}
			}

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			logger.Info("migrations applied", "driver", cfg.DatabaseDriver, "count", len(applied))
			return nil
		},
	}
}
