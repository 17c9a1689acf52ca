package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Conversation is the per-run chat history. It is reset before every
// completion so extractions never see earlier runs.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{}
}

// Reset clears the history
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Append adds messages to the history
func (c *Conversation) Append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the history
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Consume resets conv, sends messages to svc as a single streaming request and
// returns the assembled reply. Nothing is returned on error, even if some
// fragments had already arrived.
func Consume(ctx context.Context, svc CompletionService, conv *Conversation, messages []Message) (string, error) {
	if conv == nil {
		conv = NewConversation()
	}
	conv.Reset()
	conv.Append(messages...)

	var reply strings.Builder
	err := svc.StreamChat(ctx, conv.Messages(), func(delta string) error {
		reply.WriteString(delta)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", svc.Name(), err)
	}
	if strings.TrimSpace(reply.String()) == "" {
		return "", ErrEmptyCompletion
	}

	conv.Append(Message{Role: RoleAssistant, Content: reply.String()})
	return reply.String(), nil
}
