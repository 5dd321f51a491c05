package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seacatering/subscription-service/internal/analytics"
	"github.com/seacatering/subscription-service/internal/app"
	"github.com/seacatering/subscription-service/internal/clock"
)

func newMetricsCmd() *cobra.Command {
	metrics := &cobra.Command{
		Use:   "metrics",
		Short: "Business metrics over subscriptions",
	}

	var start, end string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the metrics for a date window as CSV to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			repo, closeRepo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := app.NewSubscriptionService(repo, nil, nil, clock.System{}, cfg.Location(), logger)
			w, err := analytics.ParseWindow(start, end, svc.Today())
			if err != nil {
				return err
			}
			m, err := svc.MetricsForWindow(ctx, w)
			if err != nil {
				return err
			}
			return analytics.WriteCSV(cmd.OutOrStdout(), m)
		},
	}
	export.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD (default first of this month)")
	export.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD (default today)")

	metrics.AddCommand(export)
	return metrics
}
