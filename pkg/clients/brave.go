package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mikeboe/competitor-scout/pkg/gateway"
)

// SearchResult is one ranked hit returned by the search capability.
type SearchResult struct {
	Title     string
	URL       string
	Snippet   string
	Published string
}

// SearchOptions bounds a single search call. NewsMode biases toward
// recent news coverage.
type SearchOptions struct {
	ResultCount int
	NewsMode    bool
}

const (
	braveBaseURL   = "https://api.search.brave.com"
	maxSearchCount = 20
)

// BraveClient talks to the Brave Search API.
type BraveClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewBraveClient(apiKey string) *BraveClient {
	return &BraveClient{
		apiKey:  apiKey,
		baseURL: braveBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
	PageAge     string `json:"page_age"`
}

type braveWebResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveNewsResponse struct {
	Results []braveResult `json:"results"`
}

// Search runs one query against Brave. NewsMode hits the news endpoint
// with a past-year freshness filter; otherwise plain web search.
func (b *BraveClient) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if b.apiKey == "" {
		return nil, &gateway.AuthError{Capability: gateway.CapSearch, Err: fmt.Errorf("brave api key is not set")}
	}

	count := opts.ResultCount
	if count <= 0 {
		count = 8
	}
	if count > maxSearchCount {
		count = maxSearchCount
	}

	endpoint := b.baseURL + "/res/v1/web/search"
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	if opts.NewsMode {
		endpoint = b.baseURL + "/res/v1/news/search"
		params.Set("freshness", "py")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := braveStatusError(resp, body); err != nil {
		return nil, err
	}

	if opts.NewsMode {
		var parsed braveNewsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal news response: %w", err)
		}
		return convertBraveResults(parsed.Results), nil
	}

	var parsed braveWebResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	return convertBraveResults(parsed.Web.Results), nil
}

// braveStatusError maps non-200 responses onto the gateway taxonomy so
// the retry policy can classify them without message sniffing.
func braveStatusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &gateway.AuthError{
			Capability: gateway.CapSearch,
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	case resp.StatusCode == http.StatusPaymentRequired:
		return &gateway.QuotaError{
			Capability: gateway.CapSearch,
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &gateway.RateLimitError{
			Capability: gateway.CapSearch,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	default:
		return fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func convertBraveResults(in []braveResult) []SearchResult {
	out := make([]SearchResult, 0, len(in))
	for _, r := range in {
		if r.URL == "" {
			continue
		}
		published := r.PageAge
		if published == "" {
			published = r.Age
		}
		out = append(out, SearchResult{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Description,
			Published: published,
		})
	}
	return out
}
