package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	ClaudeSonnet = "claude-sonnet-4-20250514"
	ClaudeOpus   = "claude-opus-4-20250514"
	ClaudeHaiku  = "claude-3-5-haiku-20241022"
)

// AnthropicAI builds a langchaingo client bound to one Claude model.
func AnthropicAI(apiKey, model string) (*anthropic.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is empty")
	}
	if model == "" {
		model = ClaudeSonnet
	}

	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}

	return llm, nil
}
