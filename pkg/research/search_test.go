package research

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mikeboe/competitor-scout/pkg/clients"
)

func TestExecuteSearchesFirstURLWins(t *testing.T) {
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		return []clients.SearchResult{
			{Title: "Shared", URL: "https://example.com/shared", Snippet: "from " + query},
			{Title: "Own", URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Snippet: "own"},
		}, nil
	}}
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, searcher, &fakeExtractor{})
	e.State = NewResearchState("Acme")

	docs := e.executeSearches(context.Background(), CategoryCompany, []string{"first query", "second query"}, nil)

	if len(docs) != 3 {
		t.Fatalf("merged %d documents, want 3", len(docs))
	}
	shared := docs["https://example.com/shared"]
	if shared == nil {
		t.Fatal("shared URL missing from merge")
	}
	if shared.Query != "first query" {
		t.Errorf("shared doc kept query %q, want %q", shared.Query, "first query")
	}
	if shared.Content != "from first query" {
		t.Errorf("shared doc content = %q, want the first query's snippet", shared.Content)
	}
}

func TestExecuteSearchesSkipsFailedQuery(t *testing.T) {
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		if query == "broken" {
			return nil, fmt.Errorf("search unavailable")
		}
		return cannedResults(query, 2), nil
	}}
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, searcher, &fakeExtractor{})
	e.State = NewResearchState("Acme")

	docs := e.executeSearches(context.Background(), CategoryIndustry, []string{"broken", "working"}, nil)

	if len(docs) != 2 {
		t.Fatalf("merged %d documents, want 2 from the working query", len(docs))
	}
	for _, d := range docs {
		if d.Query != "working" {
			t.Errorf("document %s kept query %q, want %q", d.URL, d.Query, "working")
		}
	}
}

func TestExecuteNewsSearchesAppendsYearsAndFallsBack(t *testing.T) {
	var newsCalls, genericCalls []string
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		if opts.NewsMode {
			newsCalls = append(newsCalls, query)
			return nil, fmt.Errorf("news endpoint down")
		}
		genericCalls = append(genericCalls, query)
		return cannedResults(query, 2), nil
	}}
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, searcher, &fakeExtractor{})
	e.State = NewResearchState("Acme")

	docs := e.executeNewsSearches(context.Background(), []string{"acme launch"}, nil)

	year := strconv.Itoa(time.Now().Year())
	prior := strconv.Itoa(time.Now().Year() - 1)
	if len(newsCalls) != 1 {
		t.Fatalf("news mode called %d times, want 1", len(newsCalls))
	}
	if !strings.Contains(newsCalls[0], year) || !strings.Contains(newsCalls[0], prior) {
		t.Errorf("news query %q missing appended years %s %s", newsCalls[0], year, prior)
	}
	if len(genericCalls) != 1 {
		t.Fatalf("generic fallback called %d times, want 1", len(genericCalls))
	}
	if len(docs) != 2 {
		t.Fatalf("merged %d documents from fallback, want 2", len(docs))
	}
	for _, d := range docs {
		if d.Category != CategoryNews {
			t.Errorf("document %s category = %q, want news", d.URL, d.Category)
		}
		if d.Query != "acme launch" {
			t.Errorf("document %s kept query %q, want the undated base query", d.URL, d.Query)
		}
	}
}

func TestFetchContentUpgradesAndKeepsSnippetOnFailure(t *testing.T) {
	extractor := &fakeExtractor{reply: func(url string) (*clients.Extracted, error) {
		if strings.HasSuffix(url, "/1") {
			return nil, fmt.Errorf("blocked by robots")
		}
		return &clients.Extracted{Title: "Full title", Text: "full text"}, nil
	}}
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, extractor)
	e.State = NewResearchState("Acme")

	docs := map[string]*Document{
		"https://example.com/1": {URL: "https://example.com/1", Snippet: "snippet one", Content: "snippet one", Position: 1, Source: SourceSearch, Category: CategoryFinancial},
		"https://example.com/2": {URL: "https://example.com/2", Snippet: "snippet two", Content: "snippet two", Position: 2, Source: SourceSearch, Category: CategoryFinancial},
	}
	e.fetchContent(context.Background(), CategoryFinancial, docs)

	failed := docs["https://example.com/1"]
	if failed.Content != "snippet one" || failed.Source != SourceSearch {
		t.Errorf("failed extraction should keep snippet and provenance, got content=%q source=%q", failed.Content, failed.Source)
	}
	upgraded := docs["https://example.com/2"]
	if upgraded.Content != "full text" || upgraded.Source != SourceExtraction {
		t.Errorf("successful extraction should replace content, got content=%q source=%q", upgraded.Content, upgraded.Source)
	}
}

func TestFetchContentHonorsCategoryCap(t *testing.T) {
	extractor := &fakeExtractor{}
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, extractor)
	e.State = NewResearchState("Acme")

	docs := make(map[string]*Document)
	for i := 1; i <= 6; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)
		docs[url] = &Document{URL: url, Snippet: "s", Content: "s", Position: i, Source: SourceSearch, Category: CategoryFinancial}
	}
	e.fetchContent(context.Background(), CategoryFinancial, docs)

	if got, want := len(extractor.seen()), extractionCap(CategoryFinancial); got != want {
		t.Errorf("extracted %d documents, want the financial cap %d", got, want)
	}
}

func TestTopCandidatesSkipsGroundingAndOrders(t *testing.T) {
	docs := map[string]*Document{
		"https://acme.com":          {URL: "https://acme.com", Source: SourceSiteGrounding},
		"https://example.com/third": {URL: "https://example.com/third", Position: 3, Source: SourceSearch},
		"https://example.com/first": {URL: "https://example.com/first", Position: 1, Source: SourceSearch},
		"https://example.com/tie-b": {URL: "https://example.com/tie-b", Position: 2, Source: SourceSearch},
		"https://example.com/tie-a": {URL: "https://example.com/tie-a", Position: 2, Source: SourceSearch},
	}

	got := topCandidates(docs, 3)

	want := []string{"https://example.com/first", "https://example.com/tie-a", "https://example.com/tie-b"}
	if len(got) != len(want) {
		t.Fatalf("topCandidates returned %d documents, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.URL != want[i] {
			t.Errorf("candidate[%d] = %s, want %s", i, d.URL, want[i])
		}
	}
}
