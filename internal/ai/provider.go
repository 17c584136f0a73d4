package ai

import (
	"context"
	"fmt"

	"exia/internal/config"
)

// Message is one role-tagged prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a completion for an ordered message list. Generate makes
// one logical request per call; retries happen inside, and exhausted retries
// surface as an error for the caller to replace with a fallback phrase.
type Provider interface {
	Generate(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// FromConfig selects the provider named in the config.
func FromConfig(cfg *config.Config) (Provider, error) {
	switch cfg.AIProvider {
	case "lmstudio", "":
		return NewLMStudioProvider(cfg.LMAPIURL, cfg.LMModel, cfg.Temperature), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", cfg.AIProvider)
	}
}
