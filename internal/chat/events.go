// Package chat implements the conversation streaming orchestrator.
//
// A request flows through a rewrite/short-circuit pipeline, the grounded
// primary completion is relayed chunk by chunk, and two enrichment tasks
// (contact titles, follow-up questions) run concurrently afterwards. The
// resulting event sequence always terminates with exactly one Done event,
// on every code path.
package chat

import (
	"context"
	"iter"

	"github.com/ragline/ragline/internal/enrich"
)

// Conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a conversation history, oldest first.
type Turn struct {
	Role string
	Text string
}

// Kind tags an Event variant.
type Kind string

// Event kinds, in the order they may appear in a stream. Text and Sources
// always precede ContactInfo and FollowUp; Done is always last and appears
// exactly once.
const (
	KindText        Kind = "message"
	KindSources     Kind = "sources"
	KindContactInfo Kind = "contact_info"
	KindFollowUp    Kind = "follow_up"
	KindDone        Kind = "done"
)

// Event is a tagged variant: exactly the fields for its Kind are set.
type Event struct {
	Kind Kind

	// KindText
	Text  string
	Error bool // fixed user-safe error text, not a model answer

	// KindSources
	Sources []string

	// KindContactInfo
	Contacts *enrich.TitledContacts

	// KindFollowUp
	FollowUps []string
}

// Chunk is one streamed unit from the completion service. Text chunks carry
// deltas; the final chunk carries the ordered, de-duplicated source list
// (Sources is non-nil exactly once, after all text).
type Chunk struct {
	Text    string
	Sources []string
}

// Completer is the boundary to the completion service. Satisfied by
// *llm.Client and by test stubs.
type Completer interface {
	// GenerateStream streams the grounded primary completion for message,
	// preceded by history.
	GenerateStream(ctx context.Context, message string, history []Turn) iter.Seq2[Chunk, error]

	// Generate performs a one-shot completion with a system instruction.
	Generate(ctx context.Context, system, text string) (string, error)

	// GenerateJSON performs a one-shot completion constrained to JSON output.
	GenerateJSON(ctx context.Context, parts []string, temperature float32) (string, error)
}
