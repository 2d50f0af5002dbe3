package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/crawler"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/security"
)

var (
	crawlMaxVisits int
	crawlDelay     time.Duration
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [seed-url...]",
	Short: "Seed the corpus by crawling allowed sites",
	Long: `Walks each seed breadth first within the allowed URL prefixes and
publishes one upsert task per discovered page. Seeds default to the
configured allow-list prefixes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd.Context(), args)
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxVisits, "max-visits", 2000, "maximum pages to visit per seed")
	crawlCmd.Flags().DurationVar(&crawlDelay, "delay", time.Second, "politeness delay between requests")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(parent context.Context, seeds []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The crawler only needs the task queue, not the model or the corpus.
	nc, err := ingest.Connect(cfg.NATSURL, logger)
	if err != nil {
		return fmt.Errorf("connecting to task queue: %w", err)
	}
	defer nc.Close()

	pub, err := ingest.NewPublisher(ctx, nc, cfg.StreamName, cfg.TaskSubject, logger)
	if err != nil {
		return fmt.Errorf("creating task publisher: %w", err)
	}

	if len(seeds) == 0 {
		seeds = cfg.AllowPrefixes
	}

	c := crawler.New(pub, security.NewAllowList(cfg.AllowPrefixes), cfg.UserAgent, logger,
		crawler.WithMaxVisits(crawlMaxVisits),
		crawler.WithDelay(crawlDelay),
	)
	if err := c.Run(ctx, seeds); err != nil {
		return fmt.Errorf("crawling: %w", err)
	}
	return nil
}
