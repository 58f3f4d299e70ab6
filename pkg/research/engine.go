package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/competitor-scout/pkg/gateway"
)

// Deps are the externally constructed collaborators an Engine needs.
// Capability clients are built once at process start and injected here;
// the engine never reaches for globals.
type Deps struct {
	Fast      llms.Model
	Reasoning llms.Model
	Searcher  Searcher
	Extractor Extractor
	Gateway   *gateway.Gateway
	Logger    *slog.Logger
}

// Options tunes the pipeline. Zero values fall back to the defaults.
type Options struct {
	MaxSearchResults   int
	RelevanceThreshold float64
	CurationBatchSize  int
	DefaultIndustry    string
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		MaxSearchResults:   8,
		RelevanceThreshold: 0.4,
		CurationBatchSize:  5,
		DefaultIndustry:    "technology",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxSearchResults <= 0 {
		o.MaxSearchResults = def.MaxSearchResults
	}
	if o.RelevanceThreshold <= 0 || o.RelevanceThreshold > 1 {
		o.RelevanceThreshold = def.RelevanceThreshold
	}
	if o.CurationBatchSize <= 0 {
		o.CurationBatchSize = def.CurationBatchSize
	}
	if o.DefaultIndustry == "" {
		o.DefaultIndustry = def.DefaultIndustry
	}
	return o
}

// Engine drives one research run: grounding, four concurrent category
// analyzers, then the sequential collect, curate, enrich, brief, and
// edit stages. Construct one per run; a running Engine must not be
// shared. During the analyzer fan-out each analyzer writes only its own
// fields of the run state, and all cross-cutting bookkeeping goes
// through mu.
type Engine struct {
	Fast      llms.Model
	Reasoning llms.Model
	Searcher  Searcher
	Extractor Extractor
	Gateway   *gateway.Gateway
	Options   Options
	Logger    *slog.Logger

	State *ResearchState

	competitor CompetitorDescriptor
	business   *BusinessContext
	observer   ProgressObserver
	grounding  map[string]*Document

	mu               sync.Mutex
	generatedQueries []string

	emitMu sync.Mutex
}

// NewEngine wires an engine from its dependencies.
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	if deps.Fast == nil || deps.Reasoning == nil {
		return nil, fmt.Errorf("both llm tiers are required")
	}
	if deps.Searcher == nil {
		return nil, fmt.Errorf("a search client is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("an extraction client is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("a gateway is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Fast:      deps.Fast,
		Reasoning: deps.Reasoning,
		Searcher:  deps.Searcher,
		Extractor: deps.Extractor,
		Gateway:   deps.Gateway,
		Options:   opts.withDefaults(),
		Logger:    logger,
	}, nil
}

// RunResearch is the public entry point: it builds an engine for one
// competitor and runs the full pipeline. The returned result is always
// well-formed, even when the run fails.
func RunResearch(ctx context.Context, deps Deps, opts Options, competitor CompetitorDescriptor, business *BusinessContext, observer ProgressObserver) *ResearchResult {
	engine, err := NewEngine(deps, opts)
	if err != nil {
		md := emptyMetadata()
		return &ResearchResult{
			Competitor: competitor,
			Briefs:     map[Category]string{},
			Metadata:   md,
			Success:    false,
			Error:      err.Error(),
		}
	}
	return engine.Run(ctx, competitor, business, observer)
}

// Run executes the full pipeline for one competitor. It never panics
// past its own boundary and never returns nil: failures come back as a
// result with Success false and a human-readable Error.
func (e *Engine) Run(ctx context.Context, competitor CompetitorDescriptor, business *BusinessContext, observer ProgressObserver) (result *ResearchResult) {
	start := time.Now()
	statsBefore := e.Gateway.Stats()

	e.competitor = competitor
	e.business = business
	e.observer = observer
	e.State = NewResearchState(competitor.Name)
	e.grounding = make(map[string]*Document)

	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("research run panicked", "company", competitor.Name, "panic", r)
			result = e.fail(start, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if strings.TrimSpace(competitor.Name) == "" {
		return e.fail(start, "competitor name is required")
	}

	e.State.Status = StatusProcessing
	e.Logger.Info("starting research run", "company", competitor.Name, "website", competitor.Website)
	e.emit(StageGrounding, "research run started", progressPct(0), nil)

	e.ground(ctx)

	if err := e.runAnalyzers(ctx); err != nil {
		e.Logger.Error("category analyzer failed, aborting run", "error", err)
		return e.fail(start, err.Error())
	}

	e.transition(StageCollector)
	e.emit(StageCollector, "merging category documents", nil, nil)
	collected := collectDocuments(e.State)
	e.completeStage(StageCollector, fmt.Sprintf("collected %d unique documents", len(collected)), map[string]any{
		"total":  len(collected),
		"counts": documentCounts(e.State),
	})

	if err := ctx.Err(); err != nil {
		return e.fail(start, fmt.Sprintf("run aborted: %v", err))
	}

	e.transition(StageCurator)
	e.emit(StageCurator, "scoring document relevance", nil, nil)
	survivors := e.curate(ctx, collected)
	e.completeStage(StageCurator, fmt.Sprintf("curated %d of %d documents", len(survivors), len(collected)), map[string]any{
		"kept":    len(survivors),
		"dropped": len(collected) - len(survivors),
	})

	e.enrichCategories(ctx)
	e.briefCategories(ctx)

	if err := ctx.Err(); err != nil {
		return e.fail(start, fmt.Sprintf("run aborted: %v", err))
	}

	if err := e.edit(ctx); err != nil {
		return e.fail(start, err.Error())
	}

	e.State.Status = StatusCompleted
	e.State.CurrentStage = StageCompleted
	e.State.CompletedAt = time.Now()
	e.emit(StageCompleted, "research completed", progressPct(totalSteps), map[string]any{
		"duration": time.Since(start).String(),
	})
	e.Logger.Info("research run completed", "company", competitor.Name, "duration", time.Since(start))

	return &ResearchResult{
		Competitor: e.competitor,
		State:      e.State,
		Report:     e.State.Report,
		Briefs:     collectBriefs(e.State),
		Metadata: ResultMetadata{
			DocumentCounts: documentCounts(e.State),
			TotalDocuments: len(survivors),
			CostEstimate:   estimateCost(statsDelta(statsBefore, e.Gateway.Stats())),
			Duration:       time.Since(start),
			Queries:        e.queriesSnapshot(),
			Sources:        sourceURLs(e.State),
		},
		Success: true,
	}
}

// runAnalyzers fans the four category analyzers out as concurrent tasks
// and blocks until all finish. Its return is the fan-in barrier: nothing
// after it runs until every analyzer has completed, and any analyzer's
// unhandled failure aborts the whole run.
func (e *Engine) runAnalyzers(ctx context.Context) error {
	e.transition(StageCompanyAnalyzer)
	e.emit(StageCompanyAnalyzer, "running category analyzers", nil, nil)

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range e.analyzers() {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: analyzer panicked: %v", a.Stage(), r)
				}
			}()
			return a.Analyze(ctx)
		})
	}
	return g.Wait()
}

// fail finalizes the run's state as failed and assembles the error
// result. Metrics are zeroed; the error string is for humans.
func (e *Engine) fail(start time.Time, msg string) *ResearchResult {
	e.State.Status = StatusError
	e.State.CurrentStage = StageError
	e.State.Error = msg
	e.State.Report = ""
	e.State.CompletedAt = time.Now()
	e.emit(StageError, msg, nil, nil)

	md := emptyMetadata()
	md.Duration = time.Since(start)
	return &ResearchResult{
		Competitor: e.competitor,
		State:      e.State,
		Briefs:     collectBriefs(e.State),
		Metadata:   md,
		Success:    false,
		Error:      msg,
	}
}

// transition records the pipeline entering a sequential stage. The
// analyzer fan-out is announced once instead, since four stages are
// active at the same time.
func (e *Engine) transition(stage Stage) {
	e.State.CurrentStage = stage
}

// completeStage appends one finished stage to the run's history and
// emits its progress event. CompletedStages never shrinks and carries no
// duplicates.
func (e *Engine) completeStage(stage Stage, message string, payload map[string]any) {
	e.mu.Lock()
	seen := false
	for _, s := range e.State.CompletedStages {
		if s == stage {
			seen = true
			break
		}
	}
	if !seen {
		e.State.CompletedStages = append(e.State.CompletedStages, stage)
	}
	completed := len(e.State.CompletedStages)
	e.mu.Unlock()

	e.emit(stage, message, progressPct(completed), payload)
}

func (e *Engine) recordQueries(queries []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generatedQueries = append(e.generatedQueries, queries...)
}

func (e *Engine) queriesSnapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.generatedQueries...)
}

func documentCounts(state *ResearchState) map[Category]int {
	counts := make(map[Category]int, len(Categories()))
	for _, c := range Categories() {
		counts[c] = len(state.DataFor(c))
	}
	return counts
}

func sourceURLs(state *ResearchState) []string {
	urls := make([]string, 0, len(state.References))
	for _, r := range state.References {
		urls = append(urls, r.URL)
	}
	return urls
}

func collectBriefs(state *ResearchState) map[Category]string {
	briefs := make(map[Category]string)
	for _, c := range Categories() {
		if b := state.BriefFor(c); b != "" {
			briefs[c] = b
		}
	}
	return briefs
}

func emptyMetadata() ResultMetadata {
	return ResultMetadata{
		DocumentCounts: map[Category]int{},
		Queries:        []string{},
		Sources:        []string{},
	}
}

// costPerCall holds rough public per-call prices, good enough for the
// cost line in the result metadata.
var costPerCall = map[gateway.Capability]float64{
	gateway.CapGenerateText: 0.010,
	gateway.CapSearch:       0.005,
	gateway.CapExtract:      0.002,
}

func estimateCost(calls map[gateway.Capability]int64) float64 {
	var total float64
	for c, n := range calls {
		total += float64(n) * costPerCall[c]
	}
	return total
}

func statsDelta(before, after map[gateway.Capability]int64) map[gateway.Capability]int64 {
	delta := make(map[gateway.Capability]int64, len(after))
	for c, n := range after {
		if d := n - before[c]; d > 0 {
			delta[c] = d
		}
	}
	return delta
}
