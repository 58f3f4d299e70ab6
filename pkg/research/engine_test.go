package research

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mikeboe/competitor-scout/pkg/clients"
)

func TestRunProducesAcmeReport(t *testing.T) {
	model := &fakeModel{reply: pipelineReply}
	searcher := &fakeSearcher{}
	extractor := &fakeExtractor{}
	e := newTestEngine(t, model, searcher, extractor)
	recorder := &eventRecorder{}

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, recorder)

	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}
	if result.State.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", result.State.Status)
	}

	if !strings.HasPrefix(result.Report, "# Competitive Intelligence Report: Acme") {
		t.Errorf("report does not open with the Acme title:\n%s", truncate(result.Report, 120))
	}
	body, hasRefs := stripReferencesSection(result.Report)
	if !hasRefs {
		t.Error("report carries no references section")
	}
	if !headingsExactly(body, sectionHeadings()) {
		t.Errorf("report body headings = %v, want the fixed four-section skeleton", secondLevelHeadings(body))
	}

	if len(result.Briefs) != 4 {
		t.Errorf("len(Briefs) = %d, want 4", len(result.Briefs))
	}

	// Every curated document carries an assigned in-range relevance.
	total := 0
	for _, c := range Categories() {
		for url, d := range result.State.DataFor(c) {
			total++
			if d.Relevance == nil {
				t.Fatalf("%s document %s has no relevance after curation", c, url)
			}
			if *d.Relevance < 0 || *d.Relevance > 1 {
				t.Errorf("%s document %s relevance = %v, want within [0,1]", c, url, *d.Relevance)
			}
		}
	}
	if total == 0 {
		t.Fatal("no documents survived curation")
	}

	md := result.Metadata
	if md.TotalDocuments == 0 {
		t.Error("metadata reports zero documents")
	}
	if len(md.Queries) != 12 {
		t.Errorf("len(Queries) = %d, want 12 (3 per category)", len(md.Queries))
	}
	if len(md.Sources) == 0 {
		t.Error("metadata reports no sources")
	}
	if md.CostEstimate <= 0 {
		t.Errorf("cost estimate = %v, want > 0", md.CostEstimate)
	}
	if md.Duration <= 0 {
		t.Errorf("duration = %v, want > 0", md.Duration)
	}

	// Extraction ran up to each category's cap: 5+3+2+4.
	if got := len(extractor.seen()); got != 14 {
		t.Errorf("extraction calls = %d, want 14", got)
	}

	assertStagesCompleteOnce(t, result.State)
}

func assertStagesCompleteOnce(t *testing.T, state *ResearchState) {
	t.Helper()
	if len(state.CompletedStages) != totalSteps {
		t.Errorf("len(CompletedStages) = %d, want %d: %v", len(state.CompletedStages), totalSteps, state.CompletedStages)
	}
	seen := make(map[Stage]bool)
	for _, s := range state.CompletedStages {
		if seen[s] {
			t.Errorf("stage %q completed twice", s)
		}
		seen[s] = true
	}
}

func TestRunCollectorWaitsForSlowestAnalyzer(t *testing.T) {
	model := &fakeModel{reply: pipelineReply}
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		// Drag one category's searches out so the barrier is observable.
		if strings.HasPrefix(query, "company-fundamentals") {
			time.Sleep(25 * time.Millisecond)
		}
		return cannedResults(query, opts.ResultCount), nil
	}}
	e := newTestEngine(t, model, searcher, &fakeExtractor{})
	recorder := &eventRecorder{}

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, recorder)
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}

	var completions []ProgressEvent
	var collectorStart *ProgressEvent
	for _, ev := range recorder.snapshot() {
		switch {
		case strings.HasSuffix(ev.Message, "analysis complete"):
			completions = append(completions, ev)
		case ev.Message == "merging category documents" && collectorStart == nil:
			collectorStart = &ev
		}
	}

	if len(completions) != 4 {
		t.Fatalf("analyzer completion events = %d, want 4", len(completions))
	}
	if collectorStart == nil {
		t.Fatal("collector start event missing")
	}
	for _, done := range completions {
		if collectorStart.Timestamp.Before(done.Timestamp) {
			t.Errorf("collector started at %v before analyzer finished at %v (%s)",
				collectorStart.Timestamp, done.Timestamp, done.Message)
		}
	}
}

func TestRunZeroDocumentsFailsWithNoBriefings(t *testing.T) {
	model := &fakeModel{reply: pipelineReply}
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		return nil, nil
	}}
	extractor := &fakeExtractor{reply: func(url string) (*clients.Extracted, error) {
		return nil, fmt.Errorf("nothing to extract")
	}}
	e := newTestEngine(t, model, searcher, extractor)

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, nil)

	if result.Success {
		t.Fatal("run succeeded with zero documents, want explicit failure")
	}
	if !strings.Contains(result.Error, "no briefings available") {
		t.Errorf("error = %q, want it to name the no-briefings condition", result.Error)
	}
	if result.Report != "" {
		t.Errorf("report = %q, want empty", result.Report)
	}
	if result.State.Status != StatusError {
		t.Errorf("status = %q, want error", result.State.Status)
	}
	if result.Briefs == nil {
		t.Error("failed result must still carry a briefs map")
	}
	if result.Metadata.TotalDocuments != 0 || len(result.Metadata.Sources) != 0 {
		t.Errorf("failed run metrics not zeroed: %+v", result.Metadata)
	}
}

func TestRunAnalyzerPanicFailsTheRun(t *testing.T) {
	model := &fakeModel{reply: pipelineReply}
	searcher := &fakeSearcher{reply: func(query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
		if strings.HasPrefix(query, "financial-signals") {
			panic("searcher blew up")
		}
		return cannedResults(query, opts.ResultCount), nil
	}}
	e := newTestEngine(t, model, searcher, &fakeExtractor{})

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, nil)

	if result.Success {
		t.Fatal("run succeeded despite a panicking analyzer")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Errorf("error = %q, want analyzer panic surfaced", result.Error)
	}
	if result.State.Status != StatusError {
		t.Errorf("status = %q, want error", result.State.Status)
	}
}

func TestRunAbortsOnCanceledContext(t *testing.T) {
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, &fakeExtractor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Run(ctx, CompetitorDescriptor{Name: "Acme"}, nil, nil)

	if result.Success {
		t.Fatal("run succeeded under a canceled context")
	}
	if !strings.Contains(result.Error, "aborted") {
		t.Errorf("error = %q, want an aborted run", result.Error)
	}
}

func TestRunRequiresCompetitorName(t *testing.T) {
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, &fakeExtractor{})

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "   "}, nil, nil)

	if result.Success {
		t.Fatal("run succeeded without a competitor name")
	}
	if !strings.Contains(result.Error, "name is required") {
		t.Errorf("error = %q, want missing-name message", result.Error)
	}
}

func TestRunSurvivesPanickingObserver(t *testing.T) {
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, &fakeExtractor{})
	observer := ObserverFunc(func(ProgressEvent) { panic("observer bug") })

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, observer)

	if !result.Success {
		t.Fatalf("run failed because of a broken observer: %s", result.Error)
	}
}

func TestRunProgressStaysInRange(t *testing.T) {
	e := newTestEngine(t, &fakeModel{reply: pipelineReply}, &fakeSearcher{}, &fakeExtractor{})
	recorder := &eventRecorder{}

	result := e.Run(context.Background(), CompetitorDescriptor{Name: "Acme"}, nil, recorder)
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}

	var last float64 = -1
	for _, ev := range recorder.snapshot() {
		if ev.Progress == nil {
			continue
		}
		if *ev.Progress < 0 || *ev.Progress > 100 {
			t.Errorf("progress %v out of range", *ev.Progress)
		}
		last = *ev.Progress
	}
	if last != 100 {
		t.Errorf("final progress = %v, want 100", last)
	}
}

func TestRunResearchReturnsWellFormedResultOnBadDeps(t *testing.T) {
	result := RunResearch(context.Background(), Deps{}, Options{}, CompetitorDescriptor{Name: "Acme"}, nil, nil)

	if result == nil {
		t.Fatal("RunResearch returned nil")
	}
	if result.Success {
		t.Fatal("run with no capability clients succeeded")
	}
	if result.Error == "" {
		t.Error("failure carries no error message")
	}
	if result.Briefs == nil || result.Metadata.Queries == nil || result.Metadata.Sources == nil {
		t.Error("failed result has nil collections, want zeroed ones")
	}
}
