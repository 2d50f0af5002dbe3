package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Connect dials NATS with reconnect handling.
func Connect(natsURL string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return nc, nil
}

// EnsureStream creates the ingestion task stream if it does not exist.
// Tasks are retained until acknowledged (WorkQueue policy): the queue is the
// durable record of pending corpus changes.
func EnsureStream(ctx context.Context, js jetstream.JetStream, stream, subject string) error {
	if _, err := js.Stream(ctx, stream); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("creating stream %s: %w", stream, err)
	}
	return nil
}

// Publisher enqueues ingestion tasks.
type Publisher struct {
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

// NewPublisher creates a Publisher and ensures the stream exists.
func NewPublisher(ctx context.Context, nc *nats.Conn, stream, subject string, logger *slog.Logger) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("initializing jetstream: %w", err)
	}
	if err := EnsureStream(ctx, js, stream, subject); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{js: js, subject: subject, logger: logger}, nil
}

// Publish enqueues one task and waits for the stream's acknowledgement, so a
// success return means the task is durably stored.
//
// The message ID is derived from action and URL. Duplicate webhook deliveries
// inside the stream's dedupe window collapse to one task; the worker refetches
// the URL when it applies the task, so collapsing never loses an update.
func (p *Publisher) Publish(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}

	sum := sha256.Sum256([]byte(string(task.Action) + "|" + task.URL))
	ack, err := p.js.Publish(ctx, p.subject, data,
		jetstream.WithMsgID(hex.EncodeToString(sum[:])))
	if err != nil {
		return fmt.Errorf("publishing task for %s: %w", task.URL, err)
	}

	p.logger.Info("published task",
		"action", task.Action, "url", task.URL, "seq", ack.Sequence)
	return nil
}
