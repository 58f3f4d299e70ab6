package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// Models bundles the two generation tiers the pipeline uses: a fast
// model for query generation and relevance scoring, a reasoning model
// for enrichment, briefs, and editing.
type Models struct {
	Fast      llms.Model
	Reasoning llms.Model
}

// NewModels constructs both tiers for the selected provider. Empty model
// names fall back to the provider defaults.
func NewModels(ctx context.Context, provider, apiKey, fastModel, reasoningModel string) (*Models, error) {
	switch provider {
	case "google", "":
		if fastModel == "" {
			fastModel = GeminiFlash
		}
		if reasoningModel == "" {
			reasoningModel = GeminiPro
		}
		fast, err := GoogleAI(ctx, apiKey, fastModel)
		if err != nil {
			return nil, err
		}
		reasoning, err := GoogleAI(ctx, apiKey, reasoningModel)
		if err != nil {
			return nil, err
		}
		return &Models{Fast: fast, Reasoning: reasoning}, nil

	case "anthropic":
		if fastModel == "" {
			fastModel = ClaudeHaiku
		}
		if reasoningModel == "" {
			reasoningModel = ClaudeSonnet
		}
		fast, err := AnthropicAI(apiKey, fastModel)
		if err != nil {
			return nil, err
		}
		reasoning, err := AnthropicAI(apiKey, reasoningModel)
		if err != nil {
			return nil, err
		}
		return &Models{Fast: fast, Reasoning: reasoning}, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
