package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const briefDocCap = 10

// briefCategories turns each category's curated documents and enrichment
// into a formatted section draft on the reasoning tier. Categories
// without surviving documents produce no brief; that is partial
// coverage, not an error. A generation failure likewise just leaves the
// category without a section.
func (e *Engine) briefCategories(ctx context.Context) {
	e.transition(StageBriefing)
	e.emit(StageBriefing, "drafting category briefs", nil, nil)

	written := 0
	for _, c := range Categories() {
		docs := byRelevance(e.State.DataFor(c))
		if len(docs) == 0 {
			continue
		}
		if len(docs) > briefDocCap {
			docs = docs[:briefDocCap]
		}

		content, err := e.generate(ctx, e.Reasoning, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, briefSystemPrompt(c)),
			llms.TextParts(llms.ChatMessageTypeHuman, briefUserPrompt(c, e.State.Company, docs, e.State.EnrichmentFor(c))),
		}, llms.WithTemperature(0.3), llms.WithMaxTokens(2048))
		if err != nil {
			e.Logger.Warn("briefing failed for category", "category", c, "error", err)
			continue
		}
		if brief := strings.TrimSpace(content); brief != "" {
			e.State.SetBriefFor(c, brief)
			written++
		}
	}

	e.completeStage(StageBriefing, fmt.Sprintf("drafted %d briefs", written), map[string]any{
		"briefs": written,
	})
}
