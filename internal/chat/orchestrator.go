package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ragline/ragline/internal/enrich"
	"github.com/ragline/ragline/internal/security"
)

// Fixed user-safe replies. Raw error detail never reaches the client.
const (
	// MsgFormatting is sent when the message contains HTML-like markup.
	MsgFormatting = "It looks like your message had some special symbols or formatting I couldn't interpret. Please try again using simple, plain text."

	// MsgPrivacy is sent when the message appears to contain PII. The
	// completion service is never invoked in that case.
	MsgPrivacy = "To protect your privacy, we cannot process requests that appear to contain personal or sensitive information. Please rephrase your question without including any personal details and try again."

	// MsgUnavailable is sent when stream generation fails unexpectedly.
	MsgUnavailable = "The assistant is not available right now, please try again later."
)

// DefaultEnrichWait is the per-task budget for collecting background
// enrichment results.
const DefaultEnrichWait = 20 * time.Second

// summaryPrefix marks the synthetic turn that replaces a summarized history.
const summaryPrefix = "PREVIOUS CONVERSATION SUMMARY: "

// Orchestrator drives one chat request from raw message to finished event
// stream. It is stateless and safe for concurrent use; every per-request
// value lives on the stack of Stream's producer goroutine.
type Orchestrator struct {
	completer  Completer
	logger     *slog.Logger
	enrichWait time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEnrichWait overrides the per-task enrichment wait budget. Tests use
// short budgets to exercise the timeout path.
func WithEnrichWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.enrichWait = d }
}

// New creates an Orchestrator.
func New(completer Completer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		completer:  completer,
		logger:     logger,
		enrichWait: DefaultEnrichWait,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stream produces the event sequence for one chat request. The returned
// channel is single-pass and closed after the terminal Done event. The
// consumer's read pace is the stream's backpressure; if ctx is canceled
// (client gone) remaining events are dropped and the producer exits.
func (o *Orchestrator) Stream(ctx context.Context, message string, history []Turn) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		o.run(ctx, message, history, events)
	}()
	return events
}

// run executes the full pipeline. The deferred block guarantees the stream
// terminates with exactly one Done, converting any panic into a fixed
// user-safe error chunk first.
func (o *Orchestrator) run(ctx context.Context, message string, history []Turn, events chan<- Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic during stream generation", "panic", r)
			o.send(ctx, events, Event{Kind: KindText, Text: MsgUnavailable, Error: true})
		}
		o.send(ctx, events, Event{Kind: KindDone})
	}()

	message, reason := security.SanitizeMessage(message)
	if reason != "" {
		o.logger.Warn("message rewritten to sentinel", "reason", reason)
	}

	if security.ContainsHTML(message) {
		o.logger.Warn("rejected message containing markup")
		o.send(ctx, events, Event{Kind: KindText, Text: MsgFormatting, Error: true})
		return
	}

	piiFound, masked := security.DetectAndMaskPII(message)
	if piiFound {
		o.logger.Warn("pii detected, skipping completion call")
		o.send(ctx, events, Event{Kind: KindText, Text: MsgPrivacy, Error: true})
		return
	}

	history = o.condenseHistory(ctx, history)

	fullText, sources, ok := o.relayCompletion(ctx, masked, history, events)
	if !ok {
		return
	}

	o.collectEnrichment(ctx, masked, fullText, sources, events)
}

// condenseHistory replaces a non-empty history with a single synthetic
// summary turn. Any failure keeps the original history.
func (o *Orchestrator) condenseHistory(ctx context.Context, history []Turn) []Turn {
	if len(history) == 0 {
		return history
	}
	summary, err := Summarize(ctx, o.completer, history)
	if err != nil || summary == "" {
		o.logger.Warn("history summarization failed, keeping original history", "error", err)
		return history
	}
	return []Turn{{Role: RoleUser, Text: summaryPrefix + summary}}
}

// relayCompletion streams the primary completion, forwarding cleaned text
// deltas immediately and the source list exactly once. Returns the
// accumulated response text and sources; ok is false when the stream failed
// (a user-safe error chunk has already been sent).
func (o *Orchestrator) relayCompletion(ctx context.Context, message string, history []Turn, events chan<- Event) (fullText string, sources []string, ok bool) {
	sourcesSent := false

	for chunk, err := range o.completer.GenerateStream(ctx, message, history) {
		if err != nil {
			o.logger.Error("primary completion failed", "error", err)
			o.send(ctx, events, Event{Kind: KindText, Text: MsgUnavailable, Error: true})
			return "", nil, false
		}

		if chunk.Text != "" {
			text := CleanChunk(chunk.Text)
			fullText += text
			if !o.send(ctx, events, Event{Kind: KindText, Text: text}) {
				return "", nil, false
			}
		}

		if chunk.Sources != nil && !sourcesSent {
			sourcesSent = true
			sources = chunk.Sources
			if !o.send(ctx, events, Event{Kind: KindSources, Sources: sources}) {
				return "", nil, false
			}
		}
	}

	return fullText, sources, true
}

// enrichResult is one background task's finished event.
type enrichResult struct {
	event Event
}

// collectEnrichment fans out the two enrichment tasks and merges their
// results into the stream. Each task posts exactly one result; collection
// waits up to enrichWait per task and skips a task that misses its budget.
// Tasks are detached from request cancellation: a disconnecting client does
// not abort them, their own timeout bounds the leak.
func (o *Orchestrator) collectEnrichment(ctx context.Context, message, fullText string, sources []string, events chan<- Event) {
	results := make(chan enrichResult, 2)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.enrichWait)
	defer cancel()

	go func() {
		contacts := enrich.ContactPipeline(bg, o.completer, fullText, sources, o.logger)
		results <- enrichResult{Event{Kind: KindContactInfo, Contacts: &contacts}}
	}()

	go func() {
		questions := enrich.FollowUps(bg, o.completer, message+" "+fullText, o.logger)
		results <- enrichResult{Event{Kind: KindFollowUp, FollowUps: questions}}
	}()

	for range 2 {
		timer := time.NewTimer(o.enrichWait)
		select {
		case r := <-results:
			timer.Stop()
			if !o.send(ctx, events, r.event) {
				return
			}
		case <-timer.C:
			o.logger.Warn("background enrichment task timed out")
		}
	}
}

// send delivers an event unless the consumer is gone. Returns false when ctx
// was canceled before the event could be delivered.
func (o *Orchestrator) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
