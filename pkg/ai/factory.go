package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ProviderConfig selects and configures one generator implementation.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Logger   zerolog.Logger
}

// NewGenerator builds the generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg ProviderConfig) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini", "google":
		return NewGeminiGenerator(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Logger: cfg.Logger})
	case "openai":
		return NewOpenAIGenerator(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Logger: cfg.Logger})
	case "anthropic", "claude":
		return NewAnthropicGenerator(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Logger: cfg.Logger})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
