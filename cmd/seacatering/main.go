/**
 * @description
 * This is the main entry point for the SEA Catering subscription service.
 * It exposes the HTTP server, schema migrations, price quotes and the
 * metrics export as cobra subcommands.
 */
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seacatering/subscription-service/internal/config"
)

var (
	envDir string
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seacatering",
		Short:         "SEA Catering subscription pricing and lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// keep stdout clean for command output such as CSV exports
			if cmd.Name() != "serve" {
				logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
				slog.SetDefault(logger)
			}
		},
	}
	root.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory holding an optional .env file")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newQuoteCmd(), newMetricsCmd())
	return root
}

// loadConfig reads .env into the process environment for local runs, then
// resolves the configuration through viper.
func loadConfig() (config.Config, error) {
	if err := godotenv.Load(envDir + "/.env"); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}
	return config.LoadConfig(envDir)
}

func main() {
	slog.SetDefault(logger)
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
