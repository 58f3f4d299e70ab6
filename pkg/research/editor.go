package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrNoBriefings is the editor's fatal condition: no category produced a
// brief, so there is nothing to compile into a report.
var ErrNoBriefings = errors.New("no briefings available")

// edit compiles the available briefs into the final report in two
// passes: compile into the fixed heading skeleton, then polish. Each
// pass falls back to its input on failure or when the model breaks the
// heading contract, so editing only fails when there are no briefs at
// all. The references section is built programmatically and reattached
// after the model passes; it is never left to generation.
func (e *Engine) edit(ctx context.Context) error {
	e.transition(StageEditor)
	e.emit(StageEditor, "compiling report", nil, nil)

	sections := availableSections(e.State)
	if len(sections) == 0 {
		return ErrNoBriefings
	}
	headings := headingsFor(sections)
	references := buildReferencesSection(e.State)

	body := e.compilePass(ctx, sections, headings)
	draft := body
	if references != "" {
		draft = body + "\n\n" + references
	}
	e.emit(StageEditor, "draft compiled", nil, map[string]any{"characters": len(draft)})

	final := e.polishPass(ctx, draft, body, headings)
	if references != "" {
		final = final + "\n\n" + references
	}

	e.State.Report = strings.TrimSpace(final) + "\n"
	e.completeStage(StageEditor, "report finalized", map[string]any{
		"sections":   len(sections),
		"references": len(e.State.References),
	})
	return nil
}

// compilePass merges the briefs into one document under the fixed
// heading skeleton. On model failure, or output that breaks the heading
// contract, the programmatic concatenation stands in.
func (e *Engine) compilePass(ctx context.Context, sections []Category, headings []string) string {
	fallback := concatenateBriefs(e.State, sections)

	var input strings.Builder
	for _, c := range sections {
		fmt.Fprintf(&input, "%s draft:\n%s\n\n", c.displayName(), e.State.BriefFor(c))
	}
	if e.State.CrossCategorySynthesis != "" {
		fmt.Fprintf(&input, "Analyst synthesis (weave in where it fits):\n%s\n", e.State.CrossCategorySynthesis)
	}

	content, err := e.generate(ctx, e.Reasoning, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, editorCompileSystemPrompt(e.State.Company, headings)),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, llms.WithTemperature(0.3), llms.WithMaxTokens(4096))
	if err != nil {
		e.Logger.Warn("compile pass failed, using concatenated briefs", "error", err)
		return fallback
	}

	body, _ := stripReferencesSection(strings.TrimSpace(content))
	body = withCanonicalTitle(body, e.State.Company)
	if !headingsExactly(body, headings) {
		e.Logger.Warn("compile pass broke the heading skeleton, using concatenated briefs")
		return fallback
	}
	return body
}

// polishPass reformats the draft on the reasoning tier, streaming chunks
// to the observer as they arrive. The model's own references section, if
// any, is stripped; the caller reattaches the canonical one.
func (e *Engine) polishPass(ctx context.Context, draft, fallback string, headings []string) string {
	content, err := e.generateStreamed(ctx, e.Reasoning, StageEditor, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, editorPolishSystemPrompt(headings)),
		llms.TextParts(llms.ChatMessageTypeHuman, draft),
	}, llms.WithTemperature(0.2), llms.WithMaxTokens(4096))
	if err != nil {
		e.Logger.Warn("polish pass failed, keeping compiled draft", "error", err)
		return fallback
	}

	body, _ := stripReferencesSection(strings.TrimSpace(content))
	body = withCanonicalTitle(body, e.State.Company)
	if !headingsExactly(body, headings) {
		e.Logger.Warn("polish pass broke the heading skeleton, keeping compiled draft")
		return fallback
	}
	return body
}

// concatenateBriefs is the no-model fallback document: canonical title,
// one fixed heading per available section, the brief text underneath.
func concatenateBriefs(state *ResearchState, sections []Category) string {
	var b strings.Builder
	b.WriteString(reportTitle(state.Company))
	for _, c := range sections {
		b.WriteString("\n\n")
		b.WriteString(c.sectionHeading())
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(state.BriefFor(c)))
	}
	return b.String()
}

// availableSections lists the categories that produced briefs, in report
// order.
func availableSections(state *ResearchState) []Category {
	var out []Category
	for _, c := range Categories() {
		if strings.TrimSpace(state.BriefFor(c)) != "" {
			out = append(out, c)
		}
	}
	return out
}

func headingsFor(sections []Category) []string {
	out := make([]string, 0, len(sections))
	for _, c := range sections {
		out = append(out, c.sectionHeading())
	}
	return out
}

// sectionHeading is the category's fixed second-level heading in the
// report skeleton.
func (c Category) sectionHeading() string {
	if c == CategoryNews {
		return "## News"
	}
	return "## " + c.displayName() + " Overview"
}

// sectionHeadings returns the full fixed skeleton in report order.
func sectionHeadings() []string {
	return headingsFor(Categories())
}

func reportTitle(company string) string {
	return "# Competitive Intelligence Report: " + company
}

const referencesHeading = "## References"

// buildReferencesSection renders the global reference list with the
// curation metadata where a citation exists. The editor owns this
// section; generation never writes it.
func buildReferencesSection(state *ResearchState) string {
	if len(state.References) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(referencesHeading)
	b.WriteString("\n")
	for i, r := range state.References {
		title := r.Title
		citation, cited := state.Citations[r.URL]
		if cited && citation.Title != "" {
			title = citation.Title
		}
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, title, r.URL)
		if cited && citation.Date != "" {
			fmt.Fprintf(&b, " (%s)", citation.Date)
		}
	}
	return b.String()
}

// stripReferencesSection cuts everything from the references heading to
// the end of the document. The bool reports whether a section was found.
func stripReferencesSection(doc string) (string, bool) {
	idx := strings.Index(doc, referencesHeading)
	if idx < 0 {
		return doc, false
	}
	return strings.TrimRight(doc[:idx], "\n "), true
}

// withCanonicalTitle replaces or inserts the document's single top-level
// heading. The title belongs to the compiler, not the model.
func withCanonicalTitle(doc, company string) string {
	lines := strings.Split(doc, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
		lines = lines[1:]
	}
	rest := strings.TrimSpace(strings.Join(lines, "\n"))
	if rest == "" {
		return reportTitle(company)
	}
	return reportTitle(company) + "\n\n" + rest
}
