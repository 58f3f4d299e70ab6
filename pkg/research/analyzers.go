package research

import (
	"context"
	"fmt"
	"strings"
)

// Analyzer researches one category. The four implementations run as
// concurrent tasks between the grounding stage and the collector
// barrier; each writes only its own fields of the run state, so they
// need no locking between them. An error returned here is fatal to the
// whole run, which is why the implementations catch and log their own
// query, search, and extraction failures instead of returning them.
type Analyzer interface {
	Stage() Stage
	Analyze(ctx context.Context) error
}

// analyzers returns the fan-out set in report order.
func (e *Engine) analyzers() []Analyzer {
	return []Analyzer{
		&companyAnalyzer{engine: e},
		&industryAnalyzer{engine: e},
		&financialAnalyst{engine: e},
		&newsScanner{engine: e},
	}
}

// companyAnalyzer researches the competitor itself: products, business
// model, leadership, positioning.
type companyAnalyzer struct{ engine *Engine }

func (a *companyAnalyzer) Stage() Stage { return StageCompanyAnalyzer }

func (a *companyAnalyzer) Analyze(ctx context.Context) error {
	return a.engine.analyzeCategory(ctx, CategoryCompany)
}

// industryAnalyzer researches the market the competitor operates in.
type industryAnalyzer struct{ engine *Engine }

func (a *industryAnalyzer) Stage() Stage { return StageIndustryAnalyzer }

func (a *industryAnalyzer) Analyze(ctx context.Context) error {
	return a.engine.analyzeCategory(ctx, CategoryIndustry)
}

// financialAnalyst hunts funding, revenue, and valuation signals.
type financialAnalyst struct{ engine *Engine }

func (a *financialAnalyst) Stage() Stage { return StageFinancialAnalyst }

func (a *financialAnalyst) Analyze(ctx context.Context) error {
	return a.engine.analyzeCategory(ctx, CategoryFinancial)
}

// newsScanner is the recency-biased variant: its queries carry the
// current and prior year and run against the news search mode first,
// falling back to the generic path per query.
type newsScanner struct{ engine *Engine }

func (a *newsScanner) Stage() Stage { return StageNewsScanner }

func (a *newsScanner) Analyze(ctx context.Context) error {
	return a.engine.analyzeCategory(ctx, CategoryNews)
}

// stageFor maps a category to its analyzer's stage name.
func stageFor(c Category) Stage {
	switch c {
	case CategoryCompany:
		return StageCompanyAnalyzer
	case CategoryIndustry:
		return StageIndustryAnalyzer
	case CategoryFinancial:
		return StageFinancialAnalyst
	case CategoryNews:
		return StageNewsScanner
	}
	return StageError
}

// analyzeCategory is the shared analyzer sequence: generate queries,
// search, seed grounding documents, extract, publish into the category's
// own state field. Only a dead context escapes as an error; everything
// else degrades to fewer or thinner documents.
func (e *Engine) analyzeCategory(ctx context.Context, c Category) error {
	stage := stageFor(c)
	e.emit(stage, fmt.Sprintf("researching %s", categoryFocus(c)), nil, nil)

	queries := e.generateQueries(ctx, c)
	e.recordQueries(queries)
	e.emit(stage, "generated search queries", nil, map[string]any{"queries": queries})

	seed := e.groundingSeed(c)
	var docs map[string]*Document
	if c == CategoryNews {
		docs = e.executeNewsSearches(ctx, queries, seed)
	} else {
		docs = e.executeSearches(ctx, c, queries, seed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s analyzer aborted: %w", c, err)
	}

	e.fetchContent(ctx, c, docs)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s analyzer aborted: %w", c, err)
	}

	e.State.SetDataFor(c, docs)
	e.completeStage(stage, fmt.Sprintf("%s analysis complete", strings.ToLower(c.displayName())), map[string]any{
		"documents": len(docs),
	})
	return nil
}
