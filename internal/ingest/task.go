// Package ingest implements the durable task queue between the content
// webhook and the corpus: a JetStream publisher on the webhook side and a
// strictly sequential consumer applying idempotent upserts and deletes.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action selects the consumer's code path.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// ContentType distinguishes HTML pages from binary media on upsert.
type ContentType string

const (
	TypeContent ContentType = "content"
	TypeMedia   ContentType = "media"
)

var (
	// ErrMissingURL indicates a task without a target URL. Malformed tasks
	// are discarded, not retried.
	ErrMissingURL = errors.New("task is missing url")

	// ErrUnknownAction indicates an action outside the known set.
	ErrUnknownAction = errors.New("unknown task action")
)

// Task is one immutable ingestion instruction. Type is only meaningful for
// upserts and defaults to content.
type Task struct {
	Action Action      `json:"action"`
	URL    string      `json:"url"`
	Type   ContentType `json:"type,omitempty"`
}

// DecodeTask parses and validates a task payload at the queue boundary.
func DecodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decoding task: %w", err)
	}
	if t.URL == "" {
		return Task{}, ErrMissingURL
	}
	switch t.Action {
	case ActionUpsert, ActionDelete:
	default:
		return Task{}, fmt.Errorf("%w: %q", ErrUnknownAction, t.Action)
	}
	if t.Action == ActionUpsert && t.Type == "" {
		t.Type = TypeContent
	}
	return t, nil
}
