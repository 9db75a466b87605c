package server

import (
	"context"
	"log"
	"sync"

	"github.com/jcleary/chatwire/internal/stats"
	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
)

type stopReq struct {
	done chan struct{}
}

// ChatServer owns the process-wide coordination state: the connection
// registry, room directory, presence tracker, broadcast router and event
// coordinator all live here for the lifetime of the process.
type ChatServer struct {
	log            *log.Logger
	store          store.Store
	registry       *ConnectionRegistry
	directory      *RoomDirectory
	presence       *PresenceTracker
	messages       *MessageService
	router         *BroadcastRouter
	coordinator    *EventCoordinator
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db store.Store, st stats.StatsProvider) (*ChatServer, error) {
	registry := NewConnectionRegistry(db)
	directory := NewRoomDirectory(db, registry, logger)
	presence := NewPresenceTracker(db, registry)
	messages := NewMessageService(db, logger)
	router := NewBroadcastRouter(logger)

	if err := directory.EnsureDefaultRooms([]types.Room{
		{Id: DefaultRoom, Name: "General", Description: "General discussion"},
		{Id: RandomRoom, Name: "Random", Description: "Anything goes"},
	}); err != nil {
		return nil, err
	}

	for _, name := range []string{"NumActiveConnections", "MessagesSent", "PrivateMessagesSent", "RoomsCreated"} {
		st.RegisterMetric(name)
	}

	cs := &ChatServer{
		log:            logger,
		store:          db,
		registry:       registry,
		directory:      directory,
		presence:       presence,
		messages:       messages,
		router:         router,
		stats:          st,
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client, 64),
		deRegisterChan: make(chan *Client, 64),
		stop:           make(chan stopReq),
	}
	cs.coordinator = NewEventCoordinator(logger, registry, directory, presence, messages, router, st)

	return cs, nil
}

// Coordinator exposes the event coordinator for transports that dispatch
// events on behalf of a connection.
func (cs *ChatServer) Coordinator() *EventCoordinator {
	return cs.coordinator
}

// Messages exposes the message service for the read-only HTTP surface.
func (cs *ChatServer) Messages() *MessageService {
	return cs.messages
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection %q", client.id)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %q", client.id)
			cs.removeClient(client)
		case req := <-cs.stop:
			cs.log.Println("stopping client connections")
			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.conn.Close()
				delete(cs.clients, c)
			}
			cs.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.router.Register(c.id, c)
	cs.stats.Incr("NumActiveConnections")
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr("NumActiveConnections")
}

// Shutdown stops the run loop and closes every client connection, waiting
// until cleanup completes or the context expires.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
