package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// GeminiService implements CompletionService using the Gemini REST API
type GeminiService struct {
	ApiKey  string
	Model   string
	baseURL string
	client  *http.Client
}

func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		// Use gemini-2.5-flash for fast extraction
		model = "gemini-2.5-flash"
	}
	return &GeminiService{
		ApiKey:  apiKey,
		Model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{},
	}
}

func (g *GeminiService) Name() string {
	return "gemini:" + g.Model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiChunk struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamChat implements CompletionService using server-sent events from
// streamGenerateContent
func (g *GeminiService) StreamChat(ctx context.Context, messages []Message, onDelta func(string) error) error {
	url := g.baseURL + g.Model + ":streamGenerateContent?alt=sse&key=" + g.ApiKey

	payload := map[string]interface{}{}
	var contents []geminiContent
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			payload["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	payload["contents"] = contents

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var chunk geminiChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("failed to parse stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("Gemini stream error: %s", chunk.Error.Message)
		}
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				if err := onDelta(part.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

// Ready checks that the key is set and the model can be looked up
func (g *GeminiService) Ready(ctx context.Context) bool {
	if g.ApiKey == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+g.Model+"?key="+g.ApiKey, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Reload is a readiness probe; the REST API has nothing to load
func (g *GeminiService) Reload(ctx context.Context) error {
	if !g.Ready(ctx) {
		return fmt.Errorf("gemini model %s unavailable", g.Model)
	}
	return nil
}
