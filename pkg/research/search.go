package research

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mikeboe/competitor-scout/pkg/clients"
)

// extractionCap bounds how many URLs per category are sent to the
// extraction capability. The remaining documents keep their snippets.
func extractionCap(c Category) int {
	switch c {
	case CategoryCompany:
		return 5
	case CategoryIndustry:
		return 3
	case CategoryFinancial:
		return 2
	case CategoryNews:
		return 4
	}
	return 3
}

// executeSearches runs each query and merges hits into one document map
// keyed by URL. The first occurrence of a URL wins and keeps its
// originating query. Individual query failures are logged and skipped.
func (e *Engine) executeSearches(ctx context.Context, c Category, queries []string, seed map[string]*Document) map[string]*Document {
	docs := make(map[string]*Document, len(seed))
	for url, d := range seed {
		docs[url] = d
	}

	for _, query := range queries {
		results, err := e.search(ctx, query, clients.SearchOptions{ResultCount: e.Options.MaxSearchResults})
		if err != nil {
			e.Logger.Warn("search failed", "category", c, "query", query, "error", err)
			continue
		}
		mergeResults(docs, c, query, results)
	}
	return docs
}

// executeNewsSearches is the recency-biased variant: each query gets the
// current and prior year appended and runs in news mode. When news mode
// fails for a query, the same query falls back to the generic path.
func (e *Engine) executeNewsSearches(ctx context.Context, queries []string, seed map[string]*Document) map[string]*Document {
	docs := make(map[string]*Document, len(seed))
	for url, d := range seed {
		docs[url] = d
	}

	year := time.Now().Year()
	for _, query := range queries {
		dated := fmt.Sprintf("%s %d %d", query, year, year-1)

		results, err := e.search(ctx, dated, clients.SearchOptions{ResultCount: e.Options.MaxSearchResults, NewsMode: true})
		if err != nil {
			e.Logger.Warn("news search failed, retrying generic path", "query", dated, "error", err)
			results, err = e.search(ctx, dated, clients.SearchOptions{ResultCount: e.Options.MaxSearchResults})
			if err != nil {
				e.Logger.Warn("generic fallback search failed", "query", dated, "error", err)
				continue
			}
		}
		mergeResults(docs, CategoryNews, query, results)
	}
	return docs
}

func mergeResults(docs map[string]*Document, c Category, query string, results []clients.SearchResult) {
	for i, r := range results {
		if r.URL == "" {
			continue
		}
		if _, exists := docs[r.URL]; exists {
			continue
		}
		docs[r.URL] = &Document{
			URL:        r.URL,
			Title:      r.Title,
			Content:    r.Snippet,
			Snippet:    r.Snippet,
			Query:      query,
			Published:  r.Published,
			Position:   i + 1,
			Source:     SourceSearch,
			Category:   c,
			Categories: []Category{c},
		}
	}
}

// fetchContent upgrades up to the category's cap of documents with
// extracted full text. On success the document's content is replaced
// and its provenance becomes extraction; on failure the snippet stays
// and the category carries on.
func (e *Engine) fetchContent(ctx context.Context, c Category, docs map[string]*Document) {
	for _, d := range topCandidates(docs, extractionCap(c)) {
		extracted, err := e.extract(ctx, d.URL, clients.ExtractOptions{OnlyMainContent: true, Timeout: 30 * time.Second})
		if err != nil {
			e.Logger.Warn("extraction failed, keeping snippet", "category", c, "url", d.URL, "error", err)
			continue
		}
		d.Content = extracted.Text
		if d.Title == "" {
			d.Title = extracted.Title
		}
		d.Source = SourceExtraction
		d.ExtractedAt = time.Now()
	}
}

// topCandidates picks the best-ranked documents still carrying only a
// snippet. Lower search positions rank first; URL breaks ties so the
// selection is deterministic.
func topCandidates(docs map[string]*Document, n int) []*Document {
	candidates := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if d.Source == SourceSiteGrounding {
			continue
		}
		candidates = append(candidates, d)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Position != candidates[j].Position {
			return candidates[i].Position < candidates[j].Position
		}
		return candidates[i].URL < candidates[j].URL
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
