package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// LocalExtractor fetches a page directly and strips it down to readable
// text. It stands in for the hosted scrape API when no extraction key is
// configured, so the pipeline still runs with only search and LLM keys.
type LocalExtractor struct {
	client *http.Client
}

func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{client: &http.Client{Timeout: 30 * time.Second}}
}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (l *LocalExtractor) Extract(ctx context.Context, pageURL string, opts ExtractOptions) (*Extracted, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch of %s failed with status: %s", pageURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q for %s", ct, pageURL)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	root := doc
	if opts.OnlyMainContent {
		if main := findMainNode(doc); main != nil {
			root = main
		}
	}

	text := collectText(root)
	if score := contentQuality(text); score < 0.3 {
		return nil, fmt.Errorf("content from %s looks like boilerplate (quality %.2f)", pageURL, score)
	}

	return &Extracted{
		Title:    pageTitle(doc),
		Text:     text,
		Metadata: map[string]string{"source_url": pageURL},
	}, nil
}

var skipTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"noscript": true,
	"form":     true,
	"iframe":   true,
	"svg":      true,
	"button":   true,
}

var blockTags = map[string]bool{
	"p":          true,
	"div":        true,
	"section":    true,
	"article":    true,
	"li":         true,
	"br":         true,
	"h1":         true,
	"h2":         true,
	"h3":         true,
	"h4":         true,
	"table":      true,
	"tr":         true,
	"blockquote": true,
}

// collectText gathers visible text, inserting line breaks at block
// boundaries so paragraphs survive the flattening.
func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skipTags[node.Data] {
			return
		}
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if node.Type == html.ElementNode && blockTags[node.Data] {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return normalizeWhitespace(b.String())
}

// findMainNode returns the first <main> or <article> element, if any.
func findMainNode(doc *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "main" || n.Data == "article") {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func pageTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

func normalizeWhitespace(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var garbageMarkers = []string{
	"enable javascript",
	"access denied",
	"captcha",
	"are you a robot",
	"accept cookies",
	"subscribe to continue",
	"page not found",
}

// contentQuality scores extracted text between 0 and 1. Short pages and
// bot-wall boilerplate score low enough to be rejected.
func contentQuality(text string) float64 {
	score := 0.5
	switch {
	case len(text) < 200:
		score -= 0.3
	case len(text) > 1500:
		score += 0.2
	default:
		score += 0.1
	}

	lower := strings.ToLower(text)
	for _, marker := range garbageMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.15
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
