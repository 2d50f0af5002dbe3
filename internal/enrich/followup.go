package enrich

import (
	"context"
	"log/slog"

	"github.com/ragline/ragline/internal/prompt"
)

// followUpCount is the number of questions requested and returned.
const followUpCount = 3

// followUpTemperature is higher than the primary completion's: variety in
// suggested questions is a feature.
const followUpTemperature = 0.7

// FollowUps generates follow-up questions from the latest turn's combined
// text (user message + model answer). Returns an empty slice on any failure.
func FollowUps(ctx context.Context, c Completer, text string, logger *slog.Logger) []string {
	raw, err := c.GenerateJSON(ctx, []string{text, prompt.FollowUps()}, followUpTemperature)
	if err != nil {
		logger.Error("follow-up generation failed", "error", err)
		return []string{}
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := decodeJSONBlock(raw, &parsed); err != nil {
		logger.Error("follow-up response was not valid JSON", "error", err)
		return []string{}
	}
	if parsed.Questions == nil {
		logger.Warn("follow-up response missing questions array")
		return []string{}
	}
	if len(parsed.Questions) > followUpCount {
		parsed.Questions = parsed.Questions[:followUpCount]
	}
	return parsed.Questions
}
