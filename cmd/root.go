// Package cmd contains the CLI entrypoints: the API server, the ingestion
// worker, the corpus crawler, and database migrations.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/log"
)

var rootCmd = &cobra.Command{
	Use:           "ragline",
	Short:         "Retrieval-augmented chat backend with webhook-driven corpus ingestion",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads and validates configuration, returning it with a logger
// configured from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})
	logger.Info("configuration loaded", "config", cfg)
	return cfg, logger, nil
}
