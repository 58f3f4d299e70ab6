package research

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultRelevance is assigned when a score cannot be parsed or a whole
// scoring batch fails. Documents are never dropped because scoring broke.
const defaultRelevance = 0.5

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseQueryLines extracts search queries from generated text.
// Grammar: one query per line; leading list markers ("-", "*", "1.",
// "1)") and surrounding quotes are stripped; empty lines and prelude
// lines ending in ":" are dropped. At most max queries are returned.
func parseQueryLines(content string, max int) []string {
	var queries []string
	for _, line := range strings.Split(content, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		queries = append(queries, line)
		if len(queries) == max {
			break
		}
	}
	return queries
}

var numberToken = regexp.MustCompile(`-?\d*\.?\d+`)

// parseScoreList reads one relevance score per document from generated
// text. Grammar: comma-separated numbers in document order; the first
// numeric token inside each comma field counts, so a "Scores: 0.9"
// prefix is tolerated. Scores clamp to [0,1]. Positions with no
// parseable value get defaultRelevance. The bool reports whether the
// parsed count matched expected; callers log the mismatch but proceed
// positionally either way.
func parseScoreList(content string, expected int) ([]float64, bool) {
	scores := make([]float64, expected)
	for i := range scores {
		scores[i] = defaultRelevance
	}

	fields := strings.Split(content, ",")
	for len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}

	matched := len(fields) == expected
	for i, field := range fields {
		if i >= expected {
			break
		}
		token := numberToken.FindString(field)
		if token == "" {
			matched = false
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			matched = false
			continue
		}
		scores[i] = clamp01(v)
	}
	return scores, matched
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var relativeAge = regexp.MustCompile(`(?i)^(\d+)\s+(minute|hour|day|week|month|year)s?\s+ago$`)

var absoluteFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// parsePublished interprets a publish date that may be absolute
// ("2025-07-01", "July 1, 2025") or relative ("3 days ago"). The bool
// is false when the value has no recognizable date.
func parsePublished(value string, now time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range absoluteFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	m := relativeAge.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch strings.ToLower(m[2]) {
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// secondLevelHeadings returns each "## " heading line of a markdown
// document in order, trimmed.
func secondLevelHeadings(doc string) []string {
	var out []string
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "## ") {
			out = append(out, line)
		}
	}
	return out
}

// headingsExactly reports whether the document's second-level headings
// are exactly want, in order. The editor uses it to decide whether a
// model pass respected the heading skeleton or its output must be
// discarded for the fallback.
func headingsExactly(doc string, want []string) bool {
	got := secondLevelHeadings(doc)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// parseIndustryLines reads the two-line industry resolution response.
// Grammar: lines prefixed "Industry:" and "Headquarters:" (case
// insensitive); anything else is ignored. A "unknown" headquarters
// value maps to empty. Missing lines yield empty strings; the caller
// applies its own default industry.
func parseIndustryLines(content string) (industry, headquarters string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "industry:"):
			industry = strings.TrimSpace(line[len("industry:"):])
		case strings.HasPrefix(lower, "headquarters:"):
			headquarters = strings.TrimSpace(line[len("headquarters:"):])
		}
	}
	if strings.EqualFold(headquarters, "unknown") {
		headquarters = ""
	}
	industry = strings.Trim(industry, `"*`)
	headquarters = strings.Trim(headquarters, `"*`)
	return industry, headquarters
}
