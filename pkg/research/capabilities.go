package research

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/competitor-scout/pkg/clients"
	"github.com/mikeboe/competitor-scout/pkg/gateway"
)

// Searcher is the web search capability the pipeline consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts clients.SearchOptions) ([]clients.SearchResult, error)
}

// Extractor is the content extraction capability the pipeline consumes.
type Extractor interface {
	Extract(ctx context.Context, url string, opts clients.ExtractOptions) (*clients.Extracted, error)
}

// generate runs one text-generation call through the gateway and returns
// the first choice's content.
func (e *Engine) generate(ctx context.Context, model llms.Model, prompts []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	return gateway.Call(ctx, e.Gateway, gateway.CapGenerateText, func(ctx context.Context) (string, error) {
		resp, err := model.GenerateContent(ctx, prompts, opts...)
		if err != nil {
			return "", fmt.Errorf("llm generation failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("llm returned no choices")
		}
		return resp.Choices[0].Content, nil
	})
}

// generateValidated retries generation until the validator accepts the
// output or the gateway's attempt budget runs out. The validator guards
// against well-formed transport responses carrying unusable text.
func (e *Engine) generateValidated(ctx context.Context, model llms.Model, prompts []llms.MessageContent, validator func(string) error) (string, error) {
	return gateway.Call(ctx, e.Gateway, gateway.CapGenerateText, func(ctx context.Context) (string, error) {
		resp, err := model.GenerateContent(ctx, prompts)
		if err != nil {
			return "", fmt.Errorf("llm generation failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("llm returned no choices")
		}
		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			return "", fmt.Errorf("validation failed: %w", err)
		}
		return content, nil
	})
}

// generateStreamed is generate with incremental output: every chunk the
// model produces is forwarded to the observer before the full text
// returns. Chunk delivery failures are ignored; the aggregate result is
// what the pipeline consumes.
func (e *Engine) generateStreamed(ctx context.Context, model llms.Model, stage Stage, prompts []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	streamOpt := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		e.emit(stage, "output chunk", nil, map[string]any{"chunk": string(chunk)})
		return nil
	})
	return e.generate(ctx, model, prompts, append(opts, streamOpt)...)
}

// search runs one query through the gateway.
func (e *Engine) search(ctx context.Context, query string, opts clients.SearchOptions) ([]clients.SearchResult, error) {
	return gateway.Call(ctx, e.Gateway, gateway.CapSearch, func(ctx context.Context) ([]clients.SearchResult, error) {
		return e.Searcher.Search(ctx, query, opts)
	})
}

// extract pulls one URL's content through the gateway.
func (e *Engine) extract(ctx context.Context, url string, opts clients.ExtractOptions) (*clients.Extracted, error) {
	return gateway.Call(ctx, e.Gateway, gateway.CapExtract, func(ctx context.Context) (*clients.Extracted, error) {
		return e.Extractor.Extract(ctx, url, opts)
	})
}
