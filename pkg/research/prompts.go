package research

import (
	"fmt"
	"strings"
)

// displayName returns the human heading fragment for a category.
func (c Category) displayName() string {
	switch c {
	case CategoryCompany:
		return "Company"
	case CategoryIndustry:
		return "Industry"
	case CategoryFinancial:
		return "Financial"
	case CategoryNews:
		return "News"
	}
	return string(c)
}

// categoryFocus describes what each analyzer is hunting for. Used in the
// query-generation and curation prompts.
func categoryFocus(c Category) string {
	switch c {
	case CategoryCompany:
		return "company fundamentals: products, services, business model, leadership, positioning"
	case CategoryIndustry:
		return "the industry landscape: market size, trends, competitive dynamics, regulation"
	case CategoryFinancial:
		return "financial signals: revenue, funding rounds, valuation, investors, profitability"
	case CategoryNews:
		return "recent news: announcements, launches, partnerships, leadership changes, controversies"
	}
	return string(c)
}

func queryGenSystemPrompt() string {
	return `You are a competitive intelligence researcher.
Generate short, specific web search queries for the requested research angle.
Output one query per line. No numbering, no bullets, no commentary.`
}

func queryGenUserPrompt(c Category, company, industry string) string {
	return fmt.Sprintf(`Company: %s
Industry: %s
Research angle: %s

Generate 3 to 4 search queries.`, company, industry, categoryFocus(c))
}

// fallbackQueries are the deterministic queries used when generation
// fails or returns nothing. Query generation never aborts an analyzer.
func fallbackQueries(c Category, company, industry string) []string {
	switch c {
	case CategoryCompany:
		return []string{
			fmt.Sprintf("%s company overview products services", company),
			fmt.Sprintf("%s business model strategy", company),
			fmt.Sprintf("%s about leadership team", company),
		}
	case CategoryIndustry:
		return []string{
			fmt.Sprintf("%s industry trends analysis", industry),
			fmt.Sprintf("%s market size growth forecast", industry),
			fmt.Sprintf("%s competitors %s", company, industry),
		}
	case CategoryFinancial:
		return []string{
			fmt.Sprintf("%s revenue funding financials", company),
			fmt.Sprintf("%s valuation investors", company),
			fmt.Sprintf("%s earnings financial results", company),
		}
	case CategoryNews:
		return []string{
			fmt.Sprintf("%s news announcements", company),
			fmt.Sprintf("%s press release", company),
			fmt.Sprintf("%s latest developments", company),
		}
	}
	return []string{company}
}

func curationSystemPrompt() string {
	return `You are a research curator scoring documents for a competitive intelligence report.
Score each document's relevance from 0.0 to 1.0:
- 1.0: directly about the target company or its immediate market
- 0.7: substantial coverage of the company, its industry, or finances
- 0.4: partially relevant background
- 0.1: off-topic, spam, or generic SEO content
Consider the research angle each document was collected under.
Respond with ONLY the scores as a comma-separated list in document order, e.g.: 0.9, 0.4, 0.7`
}

func curationUserPrompt(company string, docs []*Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target company: %s\n\nDocuments:\n", company)
	for i, d := range docs {
		excerpt := truncate(firstNonEmpty(d.Content, d.Snippet), 400)
		fmt.Fprintf(&b, "%d. [%s] %s\nURL: %s\n%s\n\n", i+1, d.Category.displayName(), d.Title, d.URL, excerpt)
	}
	fmt.Fprintf(&b, "Return exactly %d comma-separated scores.", len(docs))
	return b.String()
}

func enrichmentSystemPrompt() string {
	return `You are a competitive intelligence analyst.
Write a dense analytical narrative from the provided sources.
Requirements:
- Cite explicit dates and figures whenever the sources contain them.
- Attribute claims to their source by title or domain.
- No speculation beyond the sources. No filler.`
}

func enrichmentUserPrompt(c Category, company string, docs []*Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\nAngle: %s\n\nSources:\n", company, categoryFocus(c))
	for _, d := range docs {
		fmt.Fprintf(&b, "---\nTitle: %s\nURL: %s\nDate: %s\n%s\n", d.Title, d.URL, d.Published, truncate(d.Content, 2000))
	}
	fmt.Fprintf(&b, "\nWrite the %s analysis (2-4 paragraphs).", strings.ToLower(c.displayName()))
	return b.String()
}

func synthesisPrompt(company string, enrichments map[Category]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Cross-reference the following analyses of %s and write a short synthesis (one paragraph)
highlighting connections between them, e.g. how financial position relates to market trends or recent news.

`, company)
	for _, c := range Categories() {
		if text := enrichments[c]; text != "" {
			fmt.Fprintf(&b, "%s analysis:\n%s\n\n", c.displayName(), text)
		}
	}
	return b.String()
}

func briefSystemPrompt(c Category) string {
	if c == CategoryNews {
		return `You are compiling the news section of a competitive intelligence report.
Produce a flat markdown list, one line per item, newest first:
- **YYYY-MM-DD** — what happened (source)
Use "n.d." when no date is known. No headings, no prose outside the list.`
	}
	return fmt.Sprintf(`You are compiling the %s section of a competitive intelligence report.
Write structured prose with ### subsections where natural.
Ground every statement in the provided material. Do not invent a references list.
No top-level headings, start directly with content.`, strings.ToLower(c.displayName()))
}

func briefUserPrompt(c Category, company string, docs []*Document, enrichment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n\nCurated material:\n", company)
	for _, d := range docs {
		fmt.Fprintf(&b, "---\nTitle: %s\nURL: %s\nDate: %s\n%s\n", d.Title, d.URL, d.Published, truncate(d.Content, 1500))
	}
	if enrichment != "" {
		fmt.Fprintf(&b, "\nAnalyst notes:\n%s\n", enrichment)
	}
	fmt.Fprintf(&b, "\nWrite the %s section now.", strings.ToLower(c.displayName()))
	return b.String()
}

func editorCompileSystemPrompt(company string, headings []string) string {
	return fmt.Sprintf(`You are the editor of a competitive intelligence report.
Merge the section drafts into one coherent markdown document titled "%s"
with EXACTLY these second-level headings in this order:
%s
Keep all factual content. Do not add a references or sources section; that is appended separately.`,
		reportTitle(company), strings.Join(headings, "\n"))
}

func editorPolishSystemPrompt(headings []string) string {
	return fmt.Sprintf(`You are finalizing a competitive intelligence report.
Rewrite the document to remove redundancy, meta-commentary, and broken formatting.
Rules:
- Keep the single top-level # title.
- Keep EXACTLY these second-level headings in this order: %s
- Subsections may only use ### level.
- Preserve the References section and every line in it verbatim, character for character.
- Output only the final markdown document.`,
		strings.Join(headings, ", "))
}

func industryResolutionPrompt(company, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Identify the primary industry of the company %q`, company)
	if hint != "" {
		fmt.Fprintf(&b, ` using this material:

%s`, truncate(hint, 2000))
	}
	b.WriteString(`

Respond with exactly two lines:
Industry: <2-4 word industry label>
Headquarters: <city, country or "unknown">`)
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
