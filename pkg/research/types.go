package research

import (
	"time"
)

// Category is one of the four research dimensions analyzed independently.
type Category string

const (
	CategoryCompany   Category = "company"
	CategoryIndustry  Category = "industry"
	CategoryFinancial Category = "financial"
	CategoryNews      Category = "news"
)

// Categories returns the four research dimensions in report order.
func Categories() []Category {
	return []Category{CategoryCompany, CategoryIndustry, CategoryFinancial, CategoryNews}
}

// Stage names one state of the research pipeline.
type Stage string

const (
	StageGrounding        Stage = "grounding"
	StageCompanyAnalyzer  Stage = "company_analyzer"
	StageIndustryAnalyzer Stage = "industry_analyzer"
	StageFinancialAnalyst Stage = "financial_analyst"
	StageNewsScanner      Stage = "news_scanner"
	StageCollector        Stage = "collector"
	StageCurator          Stage = "curator"
	StageEnricher         Stage = "enricher"
	StageBriefing         Stage = "briefing"
	StageEditor           Stage = "editor"
	StageCompleted        Stage = "completed"
	StageError            Stage = "error"
)

// totalSteps is the number of non-terminal stages a run passes through,
// used for percentage progress.
const totalSteps = 10

// Status is the run-level lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Provenance records where a document's content came from.
type Provenance string

const (
	SourceSearch        Provenance = "search"
	SourceExtraction    Provenance = "extraction"
	SourceSiteGrounding Provenance = "site-grounding"
)

// CompetitorDescriptor identifies the company under research. Immutable
// input; Name must be non-empty.
type CompetitorDescriptor struct {
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// BusinessContext optionally describes the caller's own business. It
// seeds industry detection and prompt context only.
type BusinessContext struct {
	Company          string   `json:"company,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	TargetMarkets    []string `json:"targetMarkets,omitempty"`
	BusinessModel    string   `json:"businessModel,omitempty"`
	ValueProposition string   `json:"valueProposition,omitempty"`
	Products         []string `json:"products,omitempty"`
	Advantages       []string `json:"advantages,omitempty"`
	Challenges       []string `json:"challenges,omitempty"`
	Objectives       []string `json:"objectives,omitempty"`
}

// Document is one researched source. URL is the unique key within the
// owning category map. Content holds the extracted full text once
// extraction succeeds, otherwise the search snippet.
type Document struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Snippet     string     `json:"snippet"`
	Query       string     `json:"query"`
	Published   string     `json:"published,omitempty"`
	Position    int        `json:"position"`
	Relevance   *float64   `json:"relevance,omitempty"`
	Source      Provenance `json:"source"`
	ExtractedAt time.Time  `json:"extractedAt"`
	Category    Category   `json:"category"`
	Categories  []Category `json:"categories,omitempty"`
}

// Reference is one entry in the global source list, kept in first-seen
// order and deduplicated by URL.
type Reference struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Citation is the curation metadata kept per surviving URL for the
// report's reference section.
type Citation struct {
	Title string  `json:"title"`
	Date  string  `json:"date,omitempty"`
	Score float64 `json:"score"`
}

// ResearchState is the single mutable aggregate for one run. It is
// created at orchestration start, mutated in place by each stage, and
// never shared across concurrent runs. During the analyzer fan-out each
// analyzer writes only its own category fields.
type ResearchState struct {
	Company      string `json:"company"`
	Industry     string `json:"industry"`
	Headquarters string `json:"headquarters,omitempty"`

	CompanyData   map[string]*Document `json:"companyData"`
	IndustryData  map[string]*Document `json:"industryData"`
	FinancialData map[string]*Document `json:"financialData"`
	NewsData      map[string]*Document `json:"newsData"`

	CompanyBrief   string `json:"companyBrief,omitempty"`
	IndustryBrief  string `json:"industryBrief,omitempty"`
	FinancialBrief string `json:"financialBrief,omitempty"`
	NewsBrief      string `json:"newsBrief,omitempty"`

	CompanyEnrichment      string `json:"companyEnrichment,omitempty"`
	IndustryEnrichment     string `json:"industryEnrichment,omitempty"`
	FinancialEnrichment    string `json:"financialEnrichment,omitempty"`
	NewsEnrichment         string `json:"newsEnrichment,omitempty"`
	CrossCategorySynthesis string `json:"crossCategorySynthesis,omitempty"`

	CurrentStage    Stage               `json:"currentStage"`
	CompletedStages []Stage             `json:"completedStages"`
	References      []Reference         `json:"references"`
	Citations       map[string]Citation `json:"citations,omitempty"`

	Report      string    `json:"report,omitempty"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Error       string    `json:"error,omitempty"`
}

// NewResearchState initializes the run aggregate for one competitor.
func NewResearchState(company string) *ResearchState {
	return &ResearchState{
		Company:         company,
		CompanyData:     make(map[string]*Document),
		IndustryData:    make(map[string]*Document),
		FinancialData:   make(map[string]*Document),
		NewsData:        make(map[string]*Document),
		CompletedStages: []Stage{},
		References:      []Reference{},
		Citations:       make(map[string]Citation),
		CurrentStage:    StageGrounding,
		Status:          StatusPending,
		StartedAt:       time.Now(),
	}
}

// DataFor returns the document map owned by one category.
func (s *ResearchState) DataFor(c Category) map[string]*Document {
	switch c {
	case CategoryCompany:
		return s.CompanyData
	case CategoryIndustry:
		return s.IndustryData
	case CategoryFinancial:
		return s.FinancialData
	case CategoryNews:
		return s.NewsData
	}
	return nil
}

// SetDataFor replaces the document map owned by one category.
func (s *ResearchState) SetDataFor(c Category, docs map[string]*Document) {
	switch c {
	case CategoryCompany:
		s.CompanyData = docs
	case CategoryIndustry:
		s.IndustryData = docs
	case CategoryFinancial:
		s.FinancialData = docs
	case CategoryNews:
		s.NewsData = docs
	}
}

// BriefFor returns the formatted brief for one category, if any.
func (s *ResearchState) BriefFor(c Category) string {
	switch c {
	case CategoryCompany:
		return s.CompanyBrief
	case CategoryIndustry:
		return s.IndustryBrief
	case CategoryFinancial:
		return s.FinancialBrief
	case CategoryNews:
		return s.NewsBrief
	}
	return ""
}

// SetBriefFor stores the formatted brief for one category.
func (s *ResearchState) SetBriefFor(c Category, brief string) {
	switch c {
	case CategoryCompany:
		s.CompanyBrief = brief
	case CategoryIndustry:
		s.IndustryBrief = brief
	case CategoryFinancial:
		s.FinancialBrief = brief
	case CategoryNews:
		s.NewsBrief = brief
	}
}

// EnrichmentFor returns the enrichment narrative for one category.
func (s *ResearchState) EnrichmentFor(c Category) string {
	switch c {
	case CategoryCompany:
		return s.CompanyEnrichment
	case CategoryIndustry:
		return s.IndustryEnrichment
	case CategoryFinancial:
		return s.FinancialEnrichment
	case CategoryNews:
		return s.NewsEnrichment
	}
	return ""
}

// SetEnrichmentFor stores the enrichment narrative for one category.
func (s *ResearchState) SetEnrichmentFor(c Category, text string) {
	switch c {
	case CategoryCompany:
		s.CompanyEnrichment = text
	case CategoryIndustry:
		s.IndustryEnrichment = text
	case CategoryFinancial:
		s.FinancialEnrichment = text
	case CategoryNews:
		s.NewsEnrichment = text
	}
}

// ResultMetadata summarizes a run for the caller.
type ResultMetadata struct {
	DocumentCounts map[Category]int `json:"documentCounts"`
	TotalDocuments int              `json:"totalDocuments"`
	CostEstimate   float64          `json:"costEstimate"`
	Duration       time.Duration    `json:"duration"`
	Queries        []string         `json:"queries"`
	Sources        []string         `json:"sources"`
}

// ResearchResult is the only object returned to the caller. It is
// always well-formed: on failure Success is false, Error carries a
// human-readable message, and the metrics are zeroed rather than absent.
type ResearchResult struct {
	Competitor CompetitorDescriptor `json:"competitor"`
	State      *ResearchState       `json:"state,omitempty"`
	Report     string               `json:"report,omitempty"`
	Briefs     map[Category]string  `json:"briefs"`
	Metadata   ResultMetadata       `json:"metadata"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
}
