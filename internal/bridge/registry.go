// Package bridge lets a connected foreground client serve completions over
// an SSE channel.
package bridge

import (
	"log"
	"sync"
)

// Registry tracks connected foreground sessions
type Registry struct {
	mu           sync.RWMutex
	sessions     []string
	onDisconnect []func(sessionID string)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Connect records a new session
func (r *Registry) Connect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s == sessionID {
			return
		}
	}
	r.sessions = append(r.sessions, sessionID)
	log.Printf("[Bridge] Foreground session %s connected (%d active)", sessionID, len(r.sessions))
}

// Disconnect forgets a session and notifies listeners
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	found := false
	for i, s := range r.sessions {
		if s == sessionID {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			found = true
			break
		}
	}
	listeners := append([]func(string){}, r.onDisconnect...)
	active := len(r.sessions)
	r.mu.Unlock()

	if !found {
		return
	}
	log.Printf("[Bridge] Foreground session %s disconnected (%d active)", sessionID, active)
	for _, fn := range listeners {
		fn(sessionID)
	}
}

// OnDisconnect registers a callback run after a session goes away
func (r *Registry) OnDisconnect(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, fn)
}

// IsForegroundActive reports whether any session is connected
func (r *Registry) IsForegroundActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions) > 0
}

// Latest returns the most recently connected session
func (r *Registry) Latest() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sessions) == 0 {
		return "", false
	}
	return r.sessions[len(r.sessions)-1], true
}
