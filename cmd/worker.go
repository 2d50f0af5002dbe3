package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/app"
	"github.com/ragline/ragline/internal/ingest"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the ingestion worker",
	Long: `Consumes ingestion tasks from the durable queue one at a time,
fetching, extracting, and embedding documents into the corpus.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWorker(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(parent context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	fetcher := ingest.NewFetcher(cfg.FetchTimeout, cfg.UserAgent)
	consumer := ingest.NewConsumer(a.Store, a.AllowList, fetcher, cfg.WorkerPause, logger)

	logger.Info("ingestion worker ready", "stream", cfg.StreamName, "subject", cfg.TaskSubject)
	if err := consumer.Run(ctx, a.NATS, cfg.StreamName, cfg.TaskSubject); err != nil {
		return fmt.Errorf("running consumer: %w", err)
	}
	return nil
}
