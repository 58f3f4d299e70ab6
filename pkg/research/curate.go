package research

import (
	"context"
	"sort"

	"github.com/tmc/langchaingo/llms"
)

// curate scores every collected document for relevance, drops the ones
// below the threshold, and rebuilds the per-category maps from the
// survivors. Scoring failures never drop documents: a failed batch falls
// back to the default score, so curation loses nothing to transient
// errors. Returns the survivors best-first.
func (e *Engine) curate(ctx context.Context, collected []*Document) []*Document {
	batchSize := e.Options.CurationBatchSize
	for start := 0; start < len(collected); start += batchSize {
		end := start + batchSize
		if end > len(collected) {
			end = len(collected)
		}
		e.scoreBatch(ctx, collected[start:end])
	}

	survivors := make([]*Document, 0, len(collected))
	for _, d := range collected {
		if d.Relevance != nil && *d.Relevance >= e.Options.RelevanceThreshold {
			survivors = append(survivors, d)
		}
	}
	sort.Slice(survivors, func(i, j int) bool {
		if *survivors[i].Relevance != *survivors[j].Relevance {
			return *survivors[i].Relevance > *survivors[j].Relevance
		}
		return survivors[i].URL < survivors[j].URL
	})

	// Rebuild the category maps from scratch so nothing below the
	// threshold survives anywhere, then record citation metadata for the
	// report's reference section.
	fresh := make(map[Category]map[string]*Document, len(Categories()))
	for _, c := range Categories() {
		fresh[c] = make(map[string]*Document)
	}
	for _, d := range survivors {
		for _, c := range d.Categories {
			if m, ok := fresh[c]; ok {
				m[d.URL] = d
			}
		}
		e.State.Citations[d.URL] = Citation{
			Title: d.Title,
			Date:  d.Published,
			Score: *d.Relevance,
		}
	}
	for c, m := range fresh {
		e.State.SetDataFor(c, m)
	}

	return survivors
}

// scoreBatch asks the fast tier for one score per document and assigns
// them positionally. A failed call falls back to the default score for
// the whole batch; a short or garbled parse falls back per position.
// Both are logged, neither drops a document.
func (e *Engine) scoreBatch(ctx context.Context, batch []*Document) {
	if len(batch) == 0 {
		return
	}
	content, err := e.generate(ctx, e.Fast, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, curationSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, curationUserPrompt(e.State.Company, batch)),
	}, llms.WithTemperature(0))
	if err != nil {
		e.Logger.Warn("batch scoring failed, assigning default relevance", "batch_size", len(batch), "error", err)
		for _, d := range batch {
			score := defaultRelevance
			d.Relevance = &score
		}
		return
	}

	scores, matched := parseScoreList(content, len(batch))
	if !matched {
		e.Logger.Warn("score list mismatch, proceeding positionally",
			"expected", len(batch), "content", truncate(content, 120))
	}
	for i, d := range batch {
		score := scores[i]
		d.Relevance = &score
	}
}

// byRelevance orders one category's curated documents best-first.
func byRelevance(docs map[string]*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := relevanceOf(out[i]), relevanceOf(out[j])
		if ri != rj {
			return ri > rj
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func relevanceOf(d *Document) float64 {
	if d.Relevance == nil {
		return defaultRelevance
	}
	return *d.Relevance
}
