package ai

import (
	"context"
	"errors"
)

// Role tags a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionService is a streaming chat-completion engine.
// Implement this interface to add new providers (Ollama, OpenAI, Gemini, ...)
type CompletionService interface {
	// Name identifies the engine in logs
	Name() string
	// StreamChat issues one streaming request and calls onDelta for every
	// content fragment in arrival order. It returns once the stream ends.
	StreamChat(ctx context.Context, messages []Message, onDelta func(string) error) error
	// Ready reports whether the engine can serve a request right now
	Ready(ctx context.Context) bool
	// Reload (re)initializes the engine
	Reload(ctx context.Context) error
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderOpenAI ProviderType = "openai"
	ProviderAuto   ProviderType = "auto"
)

// ErrEmptyCompletion is returned when a stream ends without any content
var ErrEmptyCompletion = errors.New("completion returned no content")
