package server

import (
	"testing"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestPresence(t *testing.T, db *store.MockStore) (*PresenceTracker, *ConnectionRegistry) {
	t.Helper()
	registry := NewConnectionRegistry(db)
	return NewPresenceTracker(db, registry), registry
}

func TestPresenceTrackerTyping(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	db.On("UpsertUser", "conn-1", "alice", DefaultRoom).
		Return(types.User{ConnectionId: "conn-1", Username: "alice"}, nil).Once()

	p, registry := newTestPresence(t, db)

	_, err := registry.Bind("conn-1", "alice")
	assert.NoError(t, err, "expected no error binding connection")

	p.SetTyping("conn-1", true)
	assert.Equal(t, []string{"alice"}, p.TypingUsernames(), "expected alice in typing set")

	// keyed by connection id, so repeated calls cannot duplicate
	p.SetTyping("conn-1", true)
	assert.Len(t, p.TypingUsernames(), 1, "expected no duplicate typing entries")

	p.SetTyping("conn-1", false)
	assert.Empty(t, p.TypingUsernames(), "expected typing set to be empty")
}

func TestPresenceTrackerTypingUnbound(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	p, _ := newTestPresence(t, db)

	p.SetTyping("ghost", true)
	assert.Empty(t, p.TypingUsernames(), "expected typing call for unbound connection to be a no-op")
}

func TestPresenceTrackerClearTyping(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	db.On("UpsertUser", "conn-1", "alice", DefaultRoom).
		Return(types.User{ConnectionId: "conn-1", Username: "alice"}, nil).Once()

	p, registry := newTestPresence(t, db)

	_, err := registry.Bind("conn-1", "alice")
	assert.NoError(t, err, "expected no error binding connection")

	p.SetTyping("conn-1", true)
	p.ClearTyping("conn-1")
	assert.Empty(t, p.TypingUsernames(), "expected no stale typing entry after clear")
}

func TestPresenceTrackerOnlineUsers(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	online := []types.User{
		{ConnectionId: "conn-1", Username: "alice", Online: true},
		{ConnectionId: "conn-2", Username: "bob", Online: true},
	}
	db.On("OnlineUsers").Return(online, nil).Once()

	p, _ := newTestPresence(t, db)

	users, err := p.OnlineUsers()
	assert.NoError(t, err, "expected no error listing online users")
	assert.Equal(t, online, users, "expected store's online users")
}
