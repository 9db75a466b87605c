package server

import (
	"sync"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
)

// AnonymousUser is the sentinel name for connections with no bound identity.
const AnonymousUser = "Anonymous"

type session struct {
	username string
	room     string
}

// ConnectionRegistry binds opaque connection ids to usernames and the
// connection's room of record. The in-memory map is a cache over the
// store's user collection and is rebuilt as connections re-join.
type ConnectionRegistry struct {
	store    store.Store
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewConnectionRegistry(db store.Store) *ConnectionRegistry {
	return &ConnectionRegistry{
		store:    db,
		sessions: make(map[string]*session),
	}
}

// Bind upserts the user record, marks it online and caches the binding.
// The connection is not considered bound unless the store call succeeds.
func (r *ConnectionRegistry) Bind(connectionId, username string) (types.User, error) {
	user, err := r.store.UpsertUser(connectionId, username, DefaultRoom)
	if err != nil {
		return types.User{}, err
	}

	r.mu.Lock()
	r.sessions[connectionId] = &session{username: username, room: DefaultRoom}
	r.mu.Unlock()

	return user, nil
}

// Unbind flips the user offline, records last seen and drops the cached
// session.
func (r *ConnectionRegistry) Unbind(connectionId string) error {
	if err := r.store.SetUserOffline(connectionId, Now()); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, connectionId)
	r.mu.Unlock()

	return nil
}

// Username returns the bound username or the anonymous sentinel.
func (r *ConnectionRegistry) Username(connectionId string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[connectionId]; ok {
		return s.username
	}

	return AnonymousUser
}

// Bound reports whether the connection has a bound identity.
func (r *ConnectionRegistry) Bound(connectionId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[connectionId]
	return ok
}

// Room returns the connection's room of record, defaulting to the general
// room for unbound connections.
func (r *ConnectionRegistry) Room(connectionId string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[connectionId]; ok {
		return s.room
	}

	return DefaultRoom
}

// SetRoom updates the cached room of record. The durable copy is written
// by the room directory.
func (r *ConnectionRegistry) SetRoom(connectionId, roomId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[connectionId]; ok {
		s.room = roomId
	}
}

// Connections returns the ids of every currently bound connection.
func (r *ConnectionRegistry) Connections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}

	return ids
}
