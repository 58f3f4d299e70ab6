package research

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

const maxQueriesPerCategory = 4

// generateQueries produces 3-4 search queries for one category on the
// fast model tier. Unusable output is retried through the gateway's
// attempt budget; on total failure the deterministic fallback queries
// stand in. Query generation never aborts an analyzer.
func (e *Engine) generateQueries(ctx context.Context, c Category) []string {
	content, err := e.generateValidated(ctx, e.Fast, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, queryGenSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, queryGenUserPrompt(c, e.State.Company, e.State.Industry)),
	}, func(content string) error {
		if len(parseQueryLines(content, maxQueriesPerCategory)) == 0 {
			return fmt.Errorf("no usable query lines")
		}
		return nil
	})
	if err != nil {
		e.Logger.Warn("query generation failed, using fallbacks", "category", c, "error", err)
		return fallbackQueries(c, e.State.Company, e.State.Industry)
	}
	return parseQueryLines(content, maxQueriesPerCategory)
}
