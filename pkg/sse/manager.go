package sse

import (
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event
type Event struct {
	Type string
	Data interface{}
}

type client struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Manager keeps the open event streams, one per client id
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*client

	register   chan *client
	unregister chan *client
	stop       chan struct{}

	pingInterval time.Duration
	onConnect    func(clientID string)
	onDisconnect func(clientID string)
}

// NewManager creates a new SSE manager. Run must be started before clients
// connect.
func NewManager() *Manager {
	return &Manager{
		clients:      make(map[string]*client),
		register:     make(chan *client),
		unregister:   make(chan *client),
		stop:         make(chan struct{}),
		pingInterval: 30 * time.Second,
	}
}

// SetHooks installs callbacks invoked after a client connects and after it
// disconnects. They run on the manager goroutine and must not block.
func (m *Manager) SetHooks(onConnect, onDisconnect func(clientID string)) {
	m.onConnect = onConnect
	m.onDisconnect = onDisconnect
}

// Run processes connects and disconnects and pings idle streams until Stop
func (m *Manager) Run() {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			if existing, ok := m.clients[c.id]; ok {
				existing.close()
			}
			m.clients[c.id] = c
			m.mu.Unlock()
			log.Printf("[SSE] Client %s connected", c.id)
			if m.onConnect != nil {
				m.onConnect(c.id)
			}

		case c := <-m.unregister:
			m.mu.Lock()
			current, ok := m.clients[c.id]
			if ok && current == c {
				delete(m.clients, c.id)
			}
			m.mu.Unlock()
			c.close()
			if ok && current == c {
				log.Printf("[SSE] Client %s disconnected", c.id)
				if m.onDisconnect != nil {
					m.onDisconnect(c.id)
				}
			}

		case <-ticker.C:
			m.Broadcast("ping", gin.H{"time": time.Now().Format(time.RFC3339)})

		case <-m.stop:
			m.mu.Lock()
			for id, c := range m.clients {
				c.close()
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return
		}
	}
}

// Stop closes every stream and ends Run
func (m *Manager) Stop() {
	close(m.stop)
}

// SendToUser queues an event for one client. It reports false when the
// client is not connected or its buffer is full.
func (m *Manager) SendToUser(clientID, eventType string, data interface{}) bool {
	m.mu.RLock()
	c, ok := m.clients[clientID]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case c.events <- Event{Type: eventType, Data: data}:
		return true
	default:
		log.Printf("[SSE] Dropping %s event for slow client %s", eventType, clientID)
		return false
	}
}

// Broadcast queues an event for every connected client
func (m *Manager) Broadcast(eventType string, data interface{}) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sent := 0
	for _, id := range ids {
		if m.SendToUser(id, eventType, data) {
			sent++
		}
	}
	return sent
}

// ClientCount returns the number of open streams
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// ServeHTTP streams events to the caller until the request ends or the
// client is replaced by a newer connection with the same id
func (m *Manager) ServeHTTP(c *gin.Context, clientID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	cl := &client{
		id:     clientID,
		events: make(chan Event, 32),
		done:   make(chan struct{}),
	}

	select {
	case m.register <- cl:
	case <-m.stop:
		return
	}
	defer func() {
		select {
		case m.unregister <- cl:
		case <-m.stop:
		}
	}()

	c.SSEvent("connected", gin.H{"clientId": clientID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-cl.done:
			return
		case ev := <-cl.events:
			c.SSEvent(ev.Type, ev.Data)
			c.Writer.Flush()
		}
	}
}
