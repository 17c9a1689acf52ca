package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// OpenAIService implements CompletionService against any OpenAI-compatible
// chat completions endpoint (OpenAI, llama.cpp server, vLLM, Ollama /v1)
type OpenAIService struct {
	apiKey  string
	baseURL string
	model   string

	mu     sync.RWMutex
	client *openai.Client
}

// NewOpenAIService creates a new OpenAI-compatible service
func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	if model == "" {
		model = openai.GPT4oMini
	}
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
	}
	s.client = s.newClient()
	return s
}

func (s *OpenAIService) newClient() *openai.Client {
	cfg := openai.DefaultConfig(s.apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (s *OpenAIService) getClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *OpenAIService) Name() string {
	return "openai:" + s.model
}

// StreamChat implements CompletionService
func (s *OpenAIService) StreamChat(ctx context.Context, messages []Message, onDelta func(string) error) error {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: 0.2,
		Stream:      true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	stream, err := s.getClient().CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("openai stream request failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream error: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
}

// Ready reports whether the endpoint answers a model listing
func (s *OpenAIService) Ready(ctx context.Context) bool {
	_, err := s.getClient().ListModels(ctx)
	return err == nil
}

// Reload rebuilds the HTTP client
func (s *OpenAIService) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.client = s.newClient()
	s.mu.Unlock()
	if _, err := s.getClient().ListModels(ctx); err != nil {
		return fmt.Errorf("openai endpoint unavailable: %w", err)
	}
	return nil
}
