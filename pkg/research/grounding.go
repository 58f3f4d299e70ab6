package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/competitor-scout/pkg/clients"
)

// ground runs the one-time initialization stage: a single scrape of the
// competitor's homepage when a website is known, then industry and
// headquarters resolution. Failures here degrade the run, never abort it.
func (e *Engine) ground(ctx context.Context) {
	e.transition(StageGrounding)

	if e.competitor.Website != "" {
		e.scrapeSite(ctx, normalizeSiteURL(e.competitor.Website))
	}

	industry, headquarters := e.resolveIndustry(ctx)
	e.State.Industry = industry
	e.State.Headquarters = headquarters
	e.Logger.Info("grounding complete", "company", e.competitor.Name, "industry", industry)

	e.completeStage(StageGrounding, fmt.Sprintf("grounded research for %s", e.competitor.Name), map[string]any{
		"industry":       industry,
		"site_documents": len(e.grounding),
	})
}

// scrapeSite captures the homepage once. Every analyzer later seeds its
// own map from this shared set, so the site is never fetched per
// category.
func (e *Engine) scrapeSite(ctx context.Context, siteURL string) {
	extracted, err := e.extract(ctx, siteURL, clients.ExtractOptions{OnlyMainContent: true, Timeout: 30 * time.Second})
	if err != nil {
		e.Logger.Warn("site grounding scrape failed", "url", siteURL, "error", err)
		return
	}
	title := extracted.Title
	if title == "" {
		title = e.competitor.Name
	}
	e.grounding[siteURL] = &Document{
		URL:         siteURL,
		Title:       title,
		Content:     extracted.Text,
		Snippet:     truncate(extracted.Text, 300),
		Source:      SourceSiteGrounding,
		ExtractedAt: time.Now(),
	}
}

// groundingSeed clones the grounding documents into one category's
// ownership. Clones keep the concurrent analyzers from sharing mutable
// documents; the collector re-merges them by URL afterwards.
func (e *Engine) groundingSeed(c Category) map[string]*Document {
	if len(e.grounding) == 0 {
		return nil
	}
	seed := make(map[string]*Document, len(e.grounding))
	for url, d := range e.grounding {
		clone := *d
		clone.Category = c
		clone.Categories = []Category{c}
		seed[url] = &clone
	}
	return seed
}

// resolveIndustry picks the competitor's industry in three tiers:
// explicit business context, then description keywords, then one fast
// model call. The default label is the hard floor; resolution never
// fails the run.
func (e *Engine) resolveIndustry(ctx context.Context) (industry, headquarters string) {
	if e.business != nil && strings.TrimSpace(e.business.Industry) != "" {
		return strings.TrimSpace(e.business.Industry), ""
	}

	if industry := industryFromKeywords(e.competitor.Description); industry != "" {
		return industry, ""
	}

	hint := e.competitor.Description
	if hint == "" {
		for _, d := range e.grounding {
			hint = d.Content
			break
		}
	}

	content, err := e.generate(ctx, e.Fast, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, industryResolutionPrompt(e.competitor.Name, hint)),
	}, llms.WithTemperature(0.1))
	if err != nil {
		e.Logger.Warn("industry resolution failed, using default", "error", err)
		return e.Options.DefaultIndustry, ""
	}

	industry, headquarters = parseIndustryLines(content)
	if industry == "" {
		industry = e.Options.DefaultIndustry
	}
	return industry, headquarters
}

// industryKeywords maps description markers to industry labels. First
// match wins, so more specific markers sit above the generic ones.
var industryKeywords = []struct {
	marker   string
	industry string
}{
	{"fintech", "financial services"},
	{"bank", "financial services"},
	{"insur", "insurance"},
	{"cybersecurity", "cybersecurity"},
	{"biotech", "biotechnology"},
	{"pharma", "pharmaceuticals"},
	{"health", "healthcare"},
	{"e-commerce", "e-commerce"},
	{"ecommerce", "e-commerce"},
	{"retail", "retail"},
	{"logistics", "logistics and supply chain"},
	{"semiconductor", "semiconductors"},
	{"automotive", "automotive"},
	{"energy", "energy"},
	{"real estate", "real estate"},
	{"travel", "travel and hospitality"},
	{"gaming", "gaming"},
	{"telecom", "telecommunications"},
	{"education", "education technology"},
	{"artificial intelligence", "artificial intelligence"},
	{" ai ", "artificial intelligence"},
	{"saas", "software"},
	{"software", "software"},
	{"cloud", "cloud infrastructure"},
	{"manufactur", "manufacturing"},
	{"media", "media and entertainment"},
	{"food", "food and beverage"},
}

// industryFromKeywords maps a free-text description to an industry label
// without spending a model call. Empty when no marker matches.
func industryFromKeywords(description string) string {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return ""
	}
	// Pad so markers with word boundaries (" ai ") match at the edges.
	desc = " " + desc + " "
	for _, kw := range industryKeywords {
		if strings.Contains(desc, kw.marker) {
			return kw.industry
		}
	}
	return ""
}

// normalizeSiteURL ensures the extraction client gets an absolute URL.
func normalizeSiteURL(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return site
	}
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		return "https://" + site
	}
	return site
}
