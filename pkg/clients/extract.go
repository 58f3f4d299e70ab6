package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikeboe/competitor-scout/pkg/gateway"
)

// Extracted is the content pulled from one URL.
type Extracted struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// ExtractOptions controls one extraction call.
type ExtractOptions struct {
	OnlyMainContent bool
	Timeout         time.Duration
}

// FirecrawlClient extracts page content through a hosted scrape API.
type FirecrawlClient struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewFirecrawlClient(apiKey, apiURL string) *FirecrawlClient {
	if apiURL == "" {
		apiURL = "https://api.firecrawl.dev/v1/scrape"
	}
	return &FirecrawlClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	Timeout         int      `json:"timeout,omitempty"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Language    string `json:"language"`
			SourceURL   string `json:"sourceURL"`
			StatusCode  int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

// Extract fetches one URL's main content as markdown text.
func (f *FirecrawlClient) Extract(ctx context.Context, pageURL string, opts ExtractOptions) (*Extracted, error) {
	if f.apiKey == "" {
		return nil, &gateway.AuthError{Capability: gateway.CapExtract, Err: fmt.Errorf("extraction api key is not set")}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reqBody := firecrawlRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: opts.OnlyMainContent,
	}
	if opts.Timeout > 0 {
		reqBody.Timeout = int(opts.Timeout.Milliseconds())
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := extractStatusError(resp, body); err != nil {
		return nil, err
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrape response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("scrape failed for %s: %s", pageURL, parsed.Error)
	}
	if parsed.Data.Markdown == "" {
		return nil, fmt.Errorf("scrape returned no content for %s", pageURL)
	}

	return &Extracted{
		Title: parsed.Data.Metadata.Title,
		Text:  parsed.Data.Markdown,
		Metadata: map[string]string{
			"description": parsed.Data.Metadata.Description,
			"language":    parsed.Data.Metadata.Language,
			"source_url":  parsed.Data.Metadata.SourceURL,
		},
	}, nil
}

func extractStatusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &gateway.AuthError{
			Capability: gateway.CapExtract,
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	case resp.StatusCode == http.StatusPaymentRequired:
		return &gateway.QuotaError{
			Capability: gateway.CapExtract,
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &gateway.RateLimitError{
			Capability: gateway.CapExtract,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("status %s: %s", resp.Status, string(body)),
		}
	default:
		return fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}
}
