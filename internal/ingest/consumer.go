package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ragline/ragline/internal/extract"
	"github.com/ragline/ragline/internal/security"
)

// Documents is the slice of the corpus store the consumer drives.
// Satisfied by *corpus.Store.
type Documents interface {
	UpsertText(ctx context.Context, sourceURL, text string) error
	UpsertPDF(ctx context.Context, sourceURL string, raw []byte) error
	DeleteByURL(ctx context.Context, sourceURL string) error
}

// disposition is a task's terminal state.
type disposition int

const (
	// ackDone: side effects durably applied.
	ackDone disposition = iota
	// ackDiscard: permanently unprocessable; acknowledging prevents a
	// pointless redelivery loop.
	ackDiscard
	// nack: transient or unknown failure; the queue redelivers with backoff.
	nack
)

const consumerName = "ragline-worker"

// Consumer pulls ingestion tasks one at a time and applies them to the
// corpus. Processing is strictly sequential: the next task is not fetched
// until the previous one is acknowledged and the rate-limit pause has
// elapsed. That sequencing, not locking, is what keeps concurrent writes
// for one URL from interleaving.
type Consumer struct {
	store     Documents
	allow     *security.AllowList
	fetcher   *Fetcher
	pause     time.Duration
	logger    *slog.Logger
	extractFn func(raw []byte, pageURL string) (string, error)
}

// NewConsumer creates a Consumer.
func NewConsumer(store Documents, allow *security.AllowList, fetcher *Fetcher, pause time.Duration, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		store:     store,
		allow:     allow,
		fetcher:   fetcher,
		pause:     pause,
		logger:    logger,
		extractFn: extract.FromHTML,
	}
}

// Run consumes tasks until ctx is canceled. The durable consumer is created
// with explicit acks and at most one unacknowledged message, so redelivery
// after a crash or Nak is the platform's responsibility.
func (c *Consumer) Run(ctx context.Context, nc *nats.Conn, stream, subject string) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("initializing jetstream: %w", err)
	}
	if err := EnsureStream(ctx, js, stream, subject); err != nil {
		return err
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
		MaxDeliver:    5,
		AckWait:       5 * time.Minute,
		BackOff:       []time.Duration{10 * time.Second, time.Minute, 5 * time.Minute},
	})
	if err != nil {
		return fmt.Errorf("creating consumer %s: %w", consumerName, err)
	}

	c.logger.Info("ingestion worker started", "stream", stream, "consumer", consumerName)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		batch, err := cons.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Warn("fetch from queue failed", "error", err)
			continue
		}

		for msg := range batch.Messages() {
			c.handle(ctx, msg)
		}
	}
}

// handle applies one task and settles the message, then pauses to respect
// upstream rate limits after every task, success or failure.
func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	switch c.process(ctx, msg.Data()) {
	case ackDone, ackDiscard:
		if err := msg.Ack(); err != nil {
			c.logger.Warn("failed to ack task", "error", err)
		}
	case nack:
		if err := msg.Nak(); err != nil {
			c.logger.Warn("failed to nack task", "error", err)
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(c.pause):
	}
}

// process runs the task state machine and returns its terminal disposition.
func (c *Consumer) process(ctx context.Context, data []byte) disposition {
	task, err := DecodeTask(data)
	if err != nil {
		c.logger.Warn("discarding malformed task", "error", err)
		return ackDiscard
	}

	if err := c.allow.Check(task.URL); err != nil {
		if errors.Is(err, security.ErrAllowListEmpty) {
			// Configuration fault, not a bad task: redeliver once an
			// operator fixes the allow-list.
			c.logger.Error("SECURITY: url allow-list is not configured, refusing task", "url", task.URL)
			return nack
		}
		c.logger.Warn("discarding task for unauthorized url", "url", task.URL)
		return ackDiscard
	}

	switch task.Action {
	case ActionDelete:
		return c.processDelete(ctx, task)
	case ActionUpsert:
		return c.processUpsert(ctx, task)
	default:
		c.logger.Warn("discarding task with unknown action", "action", task.Action)
		return ackDiscard
	}
}

func (c *Consumer) processDelete(ctx context.Context, task Task) disposition {
	if err := c.store.DeleteByURL(ctx, task.URL); err != nil {
		c.logger.Error("delete failed", "url", task.URL, "error", err)
		return nack
	}
	c.logger.Info("processed delete task", "url", task.URL)
	return ackDone
}

func (c *Consumer) processUpsert(ctx context.Context, task Task) disposition {
	if task.Type == TypeMedia {
		raw, err := c.fetcher.Fetch(ctx, task.URL)
		if err != nil {
			c.logger.Error("media fetch failed", "url", task.URL, "error", err)
			return nack
		}
		if err := c.store.UpsertPDF(ctx, task.URL, raw); err != nil {
			c.logger.Error("pdf upsert failed", "url", task.URL, "error", err)
			return nack
		}
		c.logger.Info("processed media upsert", "url", task.URL)
		return ackDone
	}

	raw, err := c.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		// An unreachable page is a permanent content error here: the
		// webhook fires again on the next content change, retrying now
		// would just loop on the same broken page.
		c.logger.Error("page fetch failed, discarding task", "url", task.URL, "error", err)
		return ackDiscard
	}

	text, err := c.extractFn(raw, task.URL)
	if err != nil {
		c.logger.Error("extraction produced no text, discarding task", "url", task.URL, "error", err)
		return ackDiscard
	}

	if err := c.store.UpsertText(ctx, task.URL, text); err != nil {
		c.logger.Error("text upsert failed", "url", task.URL, "error", err)
		return nack
	}
	c.logger.Info("processed content upsert", "url", task.URL)
	return ackDone
}
