package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const (
	enrichDocCap = 5
	// recencyWindowMonths bounds which documents count as recent when the
	// enricher prefers fresh sources.
	recencyWindowMonths = 12
)

// enrichCategories derives a deeper narrative per category from the
// curated documents, then one cross-category synthesis when at least two
// categories produced a narrative. A single category's failure is logged
// and skipped; it never blocks the others or the run.
func (e *Engine) enrichCategories(ctx context.Context) {
	e.transition(StageEnricher)
	e.emit(StageEnricher, "deriving category narratives", nil, nil)

	enriched := 0
	for _, c := range Categories() {
		docs := byRelevance(e.State.DataFor(c))
		if len(docs) == 0 {
			continue
		}
		selection := recentFirst(docs, enrichDocCap, time.Now())

		content, err := e.generate(ctx, e.Reasoning, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, enrichmentSystemPrompt()),
			llms.TextParts(llms.ChatMessageTypeHuman, enrichmentUserPrompt(c, e.State.Company, selection)),
		}, llms.WithTemperature(0.4))
		if err != nil {
			e.Logger.Warn("enrichment failed for category", "category", c, "error", err)
			continue
		}
		e.State.SetEnrichmentFor(c, strings.TrimSpace(content))
		enriched++
	}

	if enriched >= 2 {
		e.synthesize(ctx)
	}

	e.completeStage(StageEnricher, fmt.Sprintf("enriched %d categories", enriched), map[string]any{
		"categories": enriched,
	})
}

// synthesize cross-references the category narratives into one short
// connective paragraph.
func (e *Engine) synthesize(ctx context.Context) {
	enrichments := make(map[Category]string)
	for _, c := range Categories() {
		if text := e.State.EnrichmentFor(c); text != "" {
			enrichments[c] = text
		}
	}

	content, err := e.generate(ctx, e.Reasoning, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, synthesisPrompt(e.State.Company, enrichments)),
	}, llms.WithTemperature(0.4))
	if err != nil {
		e.Logger.Warn("cross-category synthesis failed", "error", err)
		return
	}
	e.State.CrossCategorySynthesis = strings.TrimSpace(content)
}

// recentFirst picks up to n documents, preferring those published inside
// the recency window, newest first. When no document carries a usable
// recent date the unfiltered best-first order stands, so sparse or
// undated categories still enrich.
func recentFirst(docs []*Document, n int, now time.Time) []*Document {
	cutoff := now.AddDate(0, -recencyWindowMonths, 0)

	type dated struct {
		doc *Document
		at  time.Time
	}
	recent := make([]dated, 0, len(docs))
	for _, d := range docs {
		if t, ok := parsePublished(d.Published, now); ok && t.After(cutoff) {
			recent = append(recent, dated{doc: d, at: t})
		}
	}

	picked := docs
	if len(recent) > 0 {
		sort.Slice(recent, func(i, j int) bool {
			if !recent[i].at.Equal(recent[j].at) {
				return recent[i].at.After(recent[j].at)
			}
			return recent[i].doc.URL < recent[j].doc.URL
		})
		picked = make([]*Document, 0, len(recent))
		for _, r := range recent {
			picked = append(picked, r.doc)
		}
	}

	if len(picked) > n {
		picked = picked[:n]
	}
	return picked
}
