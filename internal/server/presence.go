package server

import (
	"sync"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
)

// PresenceTracker derives the online-user list from the store and keeps
// the live typing set. The typing set is process-local and rebuilt from
// nothing on restart.
type PresenceTracker struct {
	store    store.Store
	registry *ConnectionRegistry
	mu       sync.Mutex
	typing   map[string]string
}

func NewPresenceTracker(db store.Store, registry *ConnectionRegistry) *PresenceTracker {
	return &PresenceTracker{
		store:    db,
		registry: registry,
		typing:   make(map[string]string),
	}
}

func (p *PresenceTracker) OnlineUsers() ([]types.User, error) {
	return p.store.OnlineUsers()
}

// SetTyping records or clears the connection's typing flag. Connections
// with no bound user are ignored.
func (p *PresenceTracker) SetTyping(connectionId string, isTyping bool) {
	if !p.registry.Bound(connectionId) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if isTyping {
		p.typing[connectionId] = p.registry.Username(connectionId)
	} else {
		delete(p.typing, connectionId)
	}
}

func (p *PresenceTracker) TypingUsernames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.typing))
	for _, name := range p.typing {
		names = append(names, name)
	}

	return names
}

// ClearTyping guarantees no stale typing entry survives a dropped
// connection.
func (p *PresenceTracker) ClearTyping(connectionId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.typing, connectionId)
}
