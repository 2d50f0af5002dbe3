package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragline/ragline/internal/prompt"
)

// Summarize collapses a conversation history into one dense paragraph so the
// primary completion carries a single synthetic turn instead of the full
// transcript. Returns "" for an empty history; callers must treat "" (or an
// error) as "keep the original history"; summarization never fails a
// request.
func Summarize(ctx context.Context, c Completer, history []Turn) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		speaker := "Model"
		if turn.Role == RoleUser {
			speaker = "User"
		}
		fmt.Fprintf(&b, "%s: %s", speaker, turn.Text)
	}

	summary, err := c.Generate(ctx, prompt.Summarization(), b.String())
	if err != nil {
		return "", fmt.Errorf("summarizing history: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
