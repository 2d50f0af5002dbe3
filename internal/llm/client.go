// Package llm wraps the Gemini SDK behind the completion, embedding, and
// document-parsing boundaries the rest of the system depends on. Grounding
// is performed here: the primary completion retrieves corpus chunks, feeds
// them to the model, and reports their source URLs alongside the streamed
// text.
package llm

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/corpus"
	"github.com/ragline/ragline/internal/prompt"
)

// Generation parameters for the primary completion.
const (
	primaryTemperature = 0.1
	primaryTopP        = 0.95
	primaryMaxTokens   = 2048
	retrievalTopK      = 20
)

// Retriever supplies grounding chunks for the primary completion.
// Satisfied by *corpus.Store.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]corpus.Match, error)
}

// Client is the Gemini-backed completion service.
type Client struct {
	genai      *genai.Client
	model      string
	embedModel string
	retriever  Retriever
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client against the Vertex AI backend.
// retriever may be nil for ungrounded generation, used by the ingestion
// worker, which only needs Embed and ParseDocument.
func NewClient(ctx context.Context, cfg *config.Config, retriever Retriever, logger *slog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.GCPProject,
		Location: cfg.GCPLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		genai:      gc,
		model:      cfg.ModelName,
		embedModel: cfg.EmbedModel,
		retriever:  retriever,
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetRetriever installs the grounding retriever. The corpus store embeds
// through this client, so the two are constructed client-first and linked
// here. Must be called before any GenerateStream call.
func (c *Client) SetRetriever(r Retriever) {
	c.retriever = r
}

// safetyOff disables category blocking; refusals are governed by the system
// prompt, not the platform filter, so sanitized sentinel queries get their
// canned answers instead of empty candidates.
func safetyOff() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryHarassment,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdOff,
		})
	}
	return settings
}

// GenerateStream implements the primary grounded completion. It yields text
// deltas as the model produces them and, after the stream ends, one final
// chunk carrying the ordered, de-duplicated source URL list.
//
// Stream creation is retried on resource exhaustion; once text has been
// yielded a failure is terminal (the consumer has already relayed output).
func (c *Client) GenerateStream(ctx context.Context, message string, history []chat.Turn) iter.Seq2[chat.Chunk, error] {
	return func(yield func(chat.Chunk, error) bool) {
		matches, sources, err := c.retrieve(ctx, message)
		if err != nil {
			yield(chat.Chunk{}, err)
			return
		}

		contents := make([]*genai.Content, 0, len(history)+1)
		for _, turn := range history {
			var role genai.Role = genai.RoleUser
			if turn.Role == chat.RoleModel {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(turn.Text, role))
		}
		contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

		genCfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(c.groundedSystem(matches), genai.RoleUser),
			Temperature:       genai.Ptr(float32(primaryTemperature)),
			TopP:              genai.Ptr(float32(primaryTopP)),
			MaxOutputTokens:   primaryMaxTokens,
			SafetySettings:    safetyOff(),
			ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(0))},
		}

		for attempt := range streamAttempts {
			started := false
			var streamErr error

			for resp, err := range c.genai.Models.GenerateContentStream(ctx, c.model, contents, genCfg) {
				if err != nil {
					streamErr = err
					break
				}
				if text := resp.Text(); text != "" {
					started = true
					if !yield(chat.Chunk{Text: text}, nil) {
						return
					}
				}
			}

			if streamErr == nil {
				yield(chat.Chunk{Sources: sources}, nil)
				return
			}

			// Retry only failures to get the stream going; mid-stream
			// failures after delivered text are terminal.
			if started || !isResourceExhausted(streamErr) || attempt == streamAttempts-1 {
				yield(chat.Chunk{}, fmt.Errorf("primary completion stream: %w", streamErr))
				return
			}

			delay := backoffDelay(attempt)
			c.logger.Warn("completion stream exhausted quota, backing off",
				"attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				yield(chat.Chunk{}, fmt.Errorf("canceled during retry backoff: %w", ctx.Err()))
				return
			case <-time.After(delay):
			}
		}
	}
}

// retrieve fetches grounding chunks and derives the source URL list from
// their labels, first-seen order preserved. A nil retriever produces an
// ungrounded call.
func (c *Client) retrieve(ctx context.Context, query string) ([]corpus.Match, []string, error) {
	if c.retriever == nil {
		return nil, []string{}, nil
	}

	matches, err := c.retriever.Search(ctx, query, retrievalTopK)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving grounding chunks: %w", err)
	}

	seen := make(map[string]struct{}, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		url := corpus.ParseLabel(m.Label)
		if url == "" {
			url = m.URL
		}
		if url == "" {
			continue
		}
		if _, dup := seen[url]; !dup {
			seen[url] = struct{}{}
			sources = append(sources, url)
		}
	}
	return matches, sources, nil
}

// groundedSystem appends the numbered retrieval excerpts to the base system
// prompt. The numbering matches the citation markers the model emits (and
// the orchestrator strips).
func (c *Client) groundedSystem(matches []corpus.Match) string {
	var b strings.Builder
	b.WriteString(prompt.Grounded(c.now()))
	if len(matches) == 0 {
		return b.String()
	}
	b.WriteString("\n\n## Retrieved documents\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, m.Label, m.Content)
	}
	return b.String()
}

// Generate performs a one-shot completion with a system instruction. Used by
// the history summarizer; not retried.
func (c *Client) Generate(ctx context.Context, system, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.2)),
		MaxOutputTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("one-shot completion: %w", err)
	}
	return resp.Text(), nil
}

// GenerateJSON performs a one-shot completion constrained to JSON output,
// retried on resource exhaustion.
func (c *Client) GenerateJSON(ctx context.Context, parts []string, temperature float32) (string, error) {
	genParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		genParts = append(genParts, genai.NewPartFromText(p))
	}
	contents := []*genai.Content{genai.NewContentFromParts(genParts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(temperature)
	}

	return withRetry(ctx, c.logger, jsonAttempts, func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("json completion: %w", err)
		}
		return resp.Text(), nil
	})
}

// Embed generates embedding vectors for texts, truncated to the corpus
// schema's dimensionality.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	dim := int32(corpus.VectorDimension)
	resp, err := withRetry(ctx, c.logger, jsonAttempts, func() (*genai.EmbedContentResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		return c.genai.Models.EmbedContent(ctx, c.embedModel, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

// ParseDocument transcribes a binary document to plain text by handing the
// raw bytes to the model. This is the managed-parser path for PDFs.
func (c *Client) ParseDocument(ctx context.Context, mimeType string, raw []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(raw, mimeType),
		genai.NewPartFromText("Transcribe the full text content of this document as plain text. Preserve headings and reading order. Output only the transcription."),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	return withRetry(ctx, c.logger, jsonAttempts, func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(0)),
			MaxOutputTokens: 8192,
		})
		if err != nil {
			return "", fmt.Errorf("document transcription: %w", err)
		}
		return resp.Text(), nil
	})
}
