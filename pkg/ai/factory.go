package ai

import (
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "ollama", "openai", "gemini" or "auto"

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// OpenAI-compatible config
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Ollama config. The getters allow runtime changes from the settings API.
	GetOllamaBaseURL func() string // e.g., "http://localhost:11434"
	GetOllamaModel   func() string // e.g., "llama3", "mistral"
}

// NewCompletionService creates a CompletionService based on the config.
// This is the factory function - switch AI provider by changing config.Provider
func NewCompletionService(cfg Config) (CompletionService, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for OpenAI provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil

	case ProviderOllama:
		return newOllama(cfg), nil

	default:
		// Local Ollama first, Gemini as fallback when a key is available
		ollama := newOllama(cfg)
		if cfg.GeminiAPIKey != "" {
			return NewFallbackService(ollama, NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)), nil
		}
		return ollama, nil
	}
}

func newOllama(cfg Config) *OllamaService {
	if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaModel != nil {
		return NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	}
	return NewOllamaService("", "")
}
