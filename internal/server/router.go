package server

import (
	"log"
	"sync"
)

// eventSink receives outbound envelopes for one connection. Queue reports
// whether the envelope was accepted; a full or closed sink drops the
// event.
type eventSink interface {
	Queue(*Envelope) bool
}

// BroadcastRouter fans events out to a single connection, to every
// connection subscribed to a room label, or to everyone. Delivery to a
// target with no live subscriber is a silent no-op. The room label map is
// kept in lockstep with the directory through Subscribe, which is the
// reconciliation point between membership of record and live transport
// subscriptions.
type BroadcastRouter struct {
	log   *log.Logger
	mu    sync.RWMutex
	conns map[string]eventSink
	rooms map[string]map[string]struct{}
}

func NewBroadcastRouter(logger *log.Logger) *BroadcastRouter {
	return &BroadcastRouter{
		log:   logger,
		conns: make(map[string]eventSink),
		rooms: make(map[string]map[string]struct{}),
	}
}

func (b *BroadcastRouter) Register(connectionId string, sink eventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.conns[connectionId] = sink
}

func (b *BroadcastRouter) Deregister(connectionId string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.conns, connectionId)
	for roomId, members := range b.rooms {
		delete(members, connectionId)
		if len(members) == 0 {
			delete(b.rooms, roomId)
		}
	}
}

// Subscribe moves the connection's live subscription to the given room
// label, dropping any previous label so the transport set tracks the
// directory's one-room-of-record view.
func (b *BroadcastRouter) Subscribe(connectionId, roomId string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, members := range b.rooms {
		if id == roomId {
			continue
		}
		delete(members, connectionId)
		if len(members) == 0 {
			delete(b.rooms, id)
		}
	}

	if b.rooms[roomId] == nil {
		b.rooms[roomId] = make(map[string]struct{})
	}
	b.rooms[roomId][connectionId] = struct{}{}
}

func (b *BroadcastRouter) ToConnection(connectionId, event string, data any) {
	env := newEvent(event, data)

	b.mu.RLock()
	sink, ok := b.conns[connectionId]
	b.mu.RUnlock()

	if !ok {
		return
	}

	if !sink.Queue(env) {
		b.log.Printf("dropped %q event for connection %q", event, connectionId)
	}
}

func (b *BroadcastRouter) ToRoom(roomId, event string, data any) {
	env := newEvent(event, data)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for connectionId := range b.rooms[roomId] {
		if sink, ok := b.conns[connectionId]; ok {
			if !sink.Queue(env) {
				b.log.Printf("dropped %q event for connection %q in room %q", event, connectionId, roomId)
			}
		}
	}
}

func (b *BroadcastRouter) ToAll(event string, data any) {
	b.toAllExcept("", event, data)
}

func (b *BroadcastRouter) ToAllExcept(skipConnectionId, event string, data any) {
	b.toAllExcept(skipConnectionId, event, data)
}

func (b *BroadcastRouter) toAllExcept(skipConnectionId, event string, data any) {
	env := newEvent(event, data)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for connectionId, sink := range b.conns {
		if connectionId == skipConnectionId {
			continue
		}

		if !sink.Queue(env) {
			b.log.Printf("dropped %q event for connection %q", event, connectionId)
		}
	}
}
