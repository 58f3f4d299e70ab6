package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	// GeminiFlash is the default fast-tier model.
	GeminiFlash = "gemini-3-flash-preview"
	GeminiPro   = "gemini-3-pro-preview"
)

// GoogleAI builds a langchaingo client bound to one Gemini model.
// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
func GoogleAI(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is empty")
	}
	if model == "" {
		model = GeminiFlash
	}

	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating google ai client: %w", err)
	}

	return llm, nil
}
