// Package app wires the application components together. Each entrypoint
// (API server, ingestion worker, crawler) asks for exactly the slice of the
// container it needs; everything is closed in reverse construction order.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/corpus"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/security"
)

// App is the application container.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Blobs     *corpus.Blobs
	Store     *corpus.Store
	LLM       *llm.Client
	NATS      *nats.Conn
	Publisher *ingest.Publisher
	AllowList *security.AllowList
}

// Setup constructs the shared components: Gemini client, corpus store over
// Postgres and the blob store, and the NATS task queue. The Gemini client is
// built first and linked to the store afterwards because each grounds the
// other (the store embeds through the client, the client retrieves through
// the store).
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		AllowList: security.NewAllowList(cfg.AllowPrefixes),
	}

	client, err := llm.NewClient(ctx, cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing completion client: %w", err)
	}
	a.LLM = client

	pool, err := corpus.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to corpus database: %w", err)
	}
	a.Pool = pool

	blobs, err := corpus.OpenBlobs(cfg.BlobPath, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	a.Blobs = blobs

	store, err := corpus.NewStore(pool, client, client, blobs, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating corpus store: %w", err)
	}
	a.Store = store
	client.SetRetriever(store)

	nc, err := ingest.Connect(cfg.NATSURL, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting to task queue: %w", err)
	}
	a.NATS = nc

	pub, err := ingest.NewPublisher(ctx, nc, cfg.StreamName, cfg.TaskSubject, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating task publisher: %w", err)
	}
	a.Publisher = pub

	return a, nil
}

// Close releases all resources in reverse construction order. Safe to call
// on a partially constructed App.
func (a *App) Close() error {
	if a.NATS != nil {
		a.NATS.Close()
	}
	var err error
	if a.Blobs != nil {
		if cerr := a.Blobs.Close(); cerr != nil {
			err = fmt.Errorf("closing blob store: %w", cerr)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return err
}
