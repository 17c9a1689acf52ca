package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"billwatch-backend/pkg/ai"

	"github.com/google/uuid"
)

var (
	// ErrNoForeground is returned when no foreground session is connected
	ErrNoForeground = errors.New("no foreground session connected")
	// ErrUnknownRequest is returned for fragments of a request that is not pending
	ErrUnknownRequest = errors.New("unknown completion request")
	// ErrSessionClosed is returned when the serving session disconnects mid-stream
	ErrSessionClosed = errors.New("foreground session closed")
)

// Event types sent to the foreground
const (
	EventCompletionRequest = "completion_request"
	EventReload            = "engine_reload"
	EventNotification      = "notification"
)

// Fragment is one piece of a completion posted back by the foreground
type Fragment struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// CompletionRequest is the payload of a completion_request event
type CompletionRequest struct {
	ID       string       `json:"id"`
	Messages []ai.Message `json:"messages"`
}

// Sender delivers an event to one connected session
type Sender interface {
	SendToUser(clientID, eventType string, data interface{}) bool
}

type pendingRequest struct {
	sessionID string
	fragments chan Fragment
	closed    chan struct{}
	closeOnce sync.Once
}

// close wakes any Deliver still waiting on this request
func (p *pendingRequest) close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// Completer implements ai.CompletionService by forwarding requests to the
// most recent foreground session
type Completer struct {
	registry *Registry
	sender   Sender

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewCompleter creates a completer and subscribes it to session disconnects
func NewCompleter(registry *Registry, sender Sender) *Completer {
	c := &Completer{
		registry: registry,
		sender:   sender,
		pending:  make(map[string]*pendingRequest),
	}
	registry.OnDisconnect(c.sessionClosed)
	return c
}

func (c *Completer) Name() string {
	return "foreground"
}

// StreamChat implements ai.CompletionService
func (c *Completer) StreamChat(ctx context.Context, messages []ai.Message, onDelta func(string) error) error {
	sessionID, ok := c.registry.Latest()
	if !ok {
		return ErrNoForeground
	}

	id := uuid.New().String()
	req := &pendingRequest{
		sessionID: sessionID,
		fragments: make(chan Fragment, 64),
		closed:    make(chan struct{}),
	}
	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()
	defer c.remove(id)

	if !c.sender.SendToUser(sessionID, EventCompletionRequest, CompletionRequest{ID: id, Messages: messages}) {
		return fmt.Errorf("%w: could not deliver request to %s", ErrNoForeground, sessionID)
	}
	log.Printf("[Bridge] Completion %s sent to session %s", id, sessionID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-req.closed:
			return ErrSessionClosed
		case f := <-req.fragments:
			if f.Error != "" {
				return fmt.Errorf("foreground completion failed: %s", f.Error)
			}
			if f.Delta != "" {
				if err := onDelta(f.Delta); err != nil {
					return err
				}
			}
			if f.Done {
				return nil
			}
		}
	}
}

// Deliver hands a fragment posted by the foreground to the waiting request
func (c *Completer) Deliver(ctx context.Context, requestID string, f Fragment) error {
	c.mu.Lock()
	req, ok := c.pending[requestID]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}

	select {
	case req.fragments <- f:
		return nil
	case <-req.closed:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether a foreground session is connected
func (c *Completer) Ready(ctx context.Context) bool {
	return c.registry.IsForegroundActive()
}

// Reload asks the foreground to reload its model
func (c *Completer) Reload(ctx context.Context) error {
	sessionID, ok := c.registry.Latest()
	if !ok {
		return ErrNoForeground
	}
	if !c.sender.SendToUser(sessionID, EventReload, nil) {
		return fmt.Errorf("%w: could not deliver reload to %s", ErrNoForeground, sessionID)
	}
	return nil
}

// Pending returns the number of requests awaiting fragments
func (c *Completer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Completer) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req, ok := c.pending[id]; ok {
		req.close()
		delete(c.pending, id)
	}
}

func (c *Completer) sessionClosed(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, req := range c.pending {
		if req.sessionID == sessionID {
			req.close()
			delete(c.pending, id)
		}
	}
}
