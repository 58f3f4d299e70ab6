package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every runtime setting, loaded once at process start.
type Config struct {
	Provider        string
	GoogleApiKey    string
	AnthropicApiKey string
	BraveApiKey     string
	ExtractApiKey   string
	ExtractApiURL   string

	ReasoningModel string
	FastModel      string

	RelevanceThreshold float64
	CurationBatchSize  int
	MaxSearchResults   int

	GatewayLimitsFile  string
	GatewayMaxAttempts int

	Port string
}

// Load reads the environment into a Config. It fails when the selected
// LLM provider has no API key, since nothing downstream can run without one.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:        getEnv("LLM_PROVIDER", "google"),
		GoogleApiKey:    getEnv("GOOGLE_API_KEY", ""),
		AnthropicApiKey: getEnv("ANTHROPIC_API_KEY", ""),
		BraveApiKey:     getEnv("BRAVE_API_KEY", ""),
		ExtractApiKey:   getEnv("EXTRACT_API_KEY", ""),
		ExtractApiURL:   getEnv("EXTRACT_API_URL", "https://api.firecrawl.dev/v1/scrape"),

		ReasoningModel: getEnv("REASONING_MODEL", ""),
		FastModel:      getEnv("FAST_MODEL", ""),

		RelevanceThreshold: getEnvAsFloat("RELEVANCE_THRESHOLD", 0.4),
		CurationBatchSize:  getEnvAsInt("CURATION_BATCH_SIZE", 5),
		MaxSearchResults:   getEnvAsInt("MAX_SEARCH_RESULTS", 8),

		GatewayLimitsFile:  getEnv("GATEWAY_LIMITS_FILE", ""),
		GatewayMaxAttempts: getEnvAsInt("GATEWAY_MAX_ATTEMPTS", 3),

		Port: getEnv("PORT", "8081"),
	}

	switch cfg.Provider {
	case "google":
		if cfg.GoogleApiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required when LLM_PROVIDER=google")
		}
	case "anthropic":
		if cfg.AnthropicApiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want google or anthropic)", cfg.Provider)
	}

	return cfg, nil
}

// ProviderKey returns the API key for the selected LLM provider.
func (c *Config) ProviderKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicApiKey
	}
	return c.GoogleApiKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
