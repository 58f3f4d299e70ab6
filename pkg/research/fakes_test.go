package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/competitor-scout/pkg/clients"
	"github.com/mikeboe/competitor-scout/pkg/gateway"
)

// fakeModel scripts llms.Model: reply inspects the flattened system and
// user text and returns content or an error. Streaming options are
// honored by delivering the content in two chunks.
type fakeModel struct {
	mu    sync.Mutex
	calls []modelCall
	reply func(system, user string) (string, error)
}

type modelCall struct {
	system string
	user   string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	system, user := flattenMessages(messages)
	m.mu.Lock()
	m.calls = append(m.calls, modelCall{system: system, user: user})
	m.mu.Unlock()

	content, err := m.reply(system, user)
	if err != nil {
		return nil, err
	}

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil && content != "" {
		mid := len(content) / 2
		for _, chunk := range []string{content[:mid], content[mid:]} {
			if chunk == "" {
				continue
			}
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// countCalls reports how many recorded calls contain marker in either
// the system or the user text.
func (m *fakeModel) countCalls(marker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(c.system, marker) || strings.Contains(c.user, marker) {
			n++
		}
	}
	return n
}

func flattenMessages(messages []llms.MessageContent) (system, user string) {
	for _, msg := range messages {
		var b strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
			}
		}
		if msg.Role == llms.ChatMessageTypeSystem {
			system += b.String()
		} else {
			user += b.String()
		}
	}
	return system, user
}

var (
	scoreCountRe = regexp.MustCompile(`Return exactly (\d+) comma-separated scores`)
	angleRe      = regexp.MustCompile(`Research angle: ([a-z ]+):`)
)

// pipelineReply scripts every model call of a full run: three queries
// per category, 0.9 for every score, fixed enrichment, brief, and
// editor output. The polish pass echoes its input.
func pipelineReply(system, user string) (string, error) {
	switch {
	case strings.Contains(system, "web search queries"):
		angle := "general"
		if m := angleRe.FindStringSubmatch(user); m != nil {
			angle = strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "-")
		}
		return fmt.Sprintf("%s alpha\n%s beta\n%s gamma", angle, angle, angle), nil
	case strings.Contains(system, "research curator"):
		n := 1
		if m := scoreCountRe.FindStringSubmatch(user); m != nil {
			n, _ = strconv.Atoi(m[1])
		}
		scores := make([]string, n)
		for i := range scores {
			scores[i] = "0.9"
		}
		return strings.Join(scores, ", "), nil
	case strings.Contains(user, "Identify the primary industry"):
		return "Industry: rocketry\nHeadquarters: Mesa, USA", nil
	case strings.Contains(system, "dense analytical narrative"):
		return "Narrative grounded in the sources, with figures and dates.", nil
	case strings.Contains(user, "Cross-reference"):
		return "The category findings reinforce each other.", nil
	case strings.Contains(system, "news section"):
		return "- **2026-07-01** — product launch (Example)", nil
	case strings.Contains(system, "section of a competitive intelligence report"):
		return "### Highlights\n\nSection prose grounded in the curated material.", nil
	case strings.Contains(system, "Merge the section drafts"):
		var b strings.Builder
		b.WriteString("# Draft Report\n")
		for _, h := range sectionHeadings() {
			b.WriteString("\n" + h + "\n\nCompiled prose.\n")
		}
		return b.String(), nil
	case strings.Contains(system, "finalizing a competitive intelligence report"):
		return user, nil
	}
	return "", fmt.Errorf("unrouted prompt (system=%q)", truncate(system, 60))
}

// fakeSearcher scripts the search capability and records every query it
// receives. reply defaults to cannedResults.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	reply   func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error)
}

func (s *fakeSearcher) Search(ctx context.Context, query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.reply != nil {
		return s.reply(query, opts)
	}
	return cannedResults(query, opts.ResultCount), nil
}

func (s *fakeSearcher) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queries...)
}

// cannedResults fabricates n distinct hits for a query, all dated inside
// the last two months so recency selection keeps them.
func cannedResults(query string, n int) []clients.SearchResult {
	slug := strings.ReplaceAll(query, " ", "-")
	published := time.Now().AddDate(0, -2, 0).Format("2006-01-02")
	out := make([]clients.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, clients.SearchResult{
			Title:     fmt.Sprintf("Result %d for %s", i+1, query),
			URL:       fmt.Sprintf("https://example.com/%s/%d", slug, i+1),
			Snippet:   fmt.Sprintf("Snippet %d about %s.", i+1, query),
			Published: published,
		})
	}
	return out
}

// fakeExtractor scripts the extraction capability.
type fakeExtractor struct {
	mu    sync.Mutex
	urls  []string
	reply func(url string) (*clients.Extracted, error)
}

func (x *fakeExtractor) Extract(ctx context.Context, url string, opts clients.ExtractOptions) (*clients.Extracted, error) {
	x.mu.Lock()
	x.urls = append(x.urls, url)
	x.mu.Unlock()
	if x.reply != nil {
		return x.reply(url)
	}
	return &clients.Extracted{
		Title: "Extracted: " + url,
		Text:  "Full text for " + url + " with revenue figures and launch dates.",
	}, nil
}

func (x *fakeExtractor) seen() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string{}, x.urls...)
}

// eventRecorder is a goroutine-safe ProgressObserver for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *eventRecorder) OnProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent{}, r.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// permissiveGateway admits everything with no pacing and a single
// attempt, so failure-path tests never sleep through backoff.
func permissiveGateway() *gateway.Gateway {
	limits := gateway.Limits{
		Window:  time.Minute,
		Default: gateway.CapabilityLimit{AttemptTimeout: time.Minute},
	}
	return gateway.New(limits, 1, discardLogger())
}

func newTestEngine(t *testing.T, model llms.Model, searcher Searcher, extractor Extractor) *Engine {
	t.Helper()
	e, err := NewEngine(Deps{
		Fast:      model,
		Reasoning: model,
		Searcher:  searcher,
		Extractor: extractor,
		Gateway:   permissiveGateway(),
		Logger:    discardLogger(),
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// newStagedEngine prepares an engine for exercising a single stage
// without running the full pipeline.
func newStagedEngine(t *testing.T, model llms.Model, company string) *Engine {
	t.Helper()
	e := newTestEngine(t, model, &fakeSearcher{}, &fakeExtractor{})
	e.State = NewResearchState(company)
	e.competitor = CompetitorDescriptor{Name: company}
	e.grounding = make(map[string]*Document)
	return e
}

// docWithScore builds a curated document for stage tests.
func docWithScore(url string, position int, c Category, score float64) *Document {
	s := score
	return &Document{
		URL:        url,
		Title:      "Title " + url,
		Content:    "Content for " + url,
		Snippet:    "Snippet for " + url,
		Position:   position,
		Relevance:  &s,
		Source:     SourceSearch,
		Category:   c,
		Categories: []Category{c},
	}
}
