package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jcleary/chatwire/internal/stats"
	"github.com/jcleary/chatwire/internal/types"
)

// EventCoordinator validates inbound client events, drives the registry,
// directory, presence tracker and message service, and fans results out
// through the router. Handlers run in the originating connection's read
// goroutine; store calls suspend only that connection.
type EventCoordinator struct {
	log       *log.Logger
	registry  *ConnectionRegistry
	directory *RoomDirectory
	presence  *PresenceTracker
	messages  *MessageService
	router    *BroadcastRouter
	stats     stats.StatsProvider
}

func NewEventCoordinator(
	logger *log.Logger,
	registry *ConnectionRegistry,
	directory *RoomDirectory,
	presence *PresenceTracker,
	messages *MessageService,
	router *BroadcastRouter,
	st stats.StatsProvider,
) *EventCoordinator {
	return &EventCoordinator{
		log:       logger,
		registry:  registry,
		directory: directory,
		presence:  presence,
		messages:  messages,
		router:    router,
		stats:     st,
	}
}

type errorBody struct {
	Message string `json:"message"`
}

type userJoinedBody struct {
	Username     string `json:"username"`
	ConnectionId string `json:"connection_id"`
	Room         string `json:"room,omitempty"`
}

type deliveredBody struct {
	MessageId int64     `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

type notificationBody struct {
	Type    string `json:"type,omitempty"`
	Room    string `json:"room,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Message string `json:"message"`
}

type reactionBody struct {
	MessageId    int64  `json:"message_id"`
	ConnectionId string `json:"connection_id"`
	Reaction     string `json:"reaction"`
}

type readReceiptBody struct {
	MessageId int64  `json:"message_id"`
	Reader    string `json:"reader"`
}

type messagesLoadedBody struct {
	Room     string          `json:"room"`
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"has_more"`
}

type searchResultsBody struct {
	Query   string          `json:"query"`
	Results []types.Message `json:"results"`
}

type userLeftBody struct {
	Username     string `json:"username"`
	ConnectionId string `json:"connection_id"`
}

// Dispatch routes one inbound envelope to its handler. Any failure is
// caught here, logged and reported to the originating connection only.
func (c *EventCoordinator) Dispatch(connectionId string, env *Envelope) {
	var err error

	switch env.Event {
	case EventUserJoin:
		err = c.handleUserJoin(connectionId, env.Data)
	case EventSendMessage:
		err = c.handleSendMessage(connectionId, env.Data)
	case EventCreateRoom:
		err = c.handleCreateRoom(connectionId, env.Data)
	case EventJoinRoom:
		err = c.handleJoinRoom(connectionId, env.Data)
	case EventTyping:
		err = c.handleTyping(connectionId, env.Data)
	case EventPrivateMessage:
		err = c.handlePrivateMessage(connectionId, env.Data)
	case EventAddReaction:
		err = c.handleAddReaction(connectionId, env.Data)
	case EventMessageRead:
		err = c.handleMessageRead(connectionId, env.Data)
	case EventShareFile:
		err = c.handleShareFile(connectionId, env.Data)
	case EventLoadMessages:
		err = c.handleLoadMessages(connectionId, env.Data)
	case EventSearchMessages:
		err = c.handleSearchMessages(connectionId, env.Data)
	default:
		err = errValidation(fmt.Sprintf("unknown event %q", env.Event))
	}

	if err != nil {
		c.fail(connectionId, env.Event, err)
	}
}

func (c *EventCoordinator) fail(connectionId, event string, err error) {
	c.log.Printf("%s from %q: %v", event, connectionId, err)

	message := "internal server error"
	var ve *ValidationError
	if errors.As(err, &ve) {
		message = ve.Reason
	}

	c.router.ToConnection(connectionId, EventError, errorBody{Message: message})
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, errValidation("missing payload")
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errValidation("malformed payload")
	}

	return payload, nil
}

func (c *EventCoordinator) handleUserJoin(connectionId string, data json.RawMessage) error {
	p, err := decode[UserJoinPayload](data)
	if err != nil {
		return err
	}
	if p.Username == "" {
		return errValidation("username is required")
	}

	if _, err := c.registry.Bind(connectionId, p.Username); err != nil {
		return err
	}

	if _, _, err := c.directory.JoinRoom(connectionId, DefaultRoom); err != nil {
		return err
	}
	c.router.Subscribe(connectionId, DefaultRoom)

	if err := c.broadcastUserList(); err != nil {
		return err
	}

	c.router.ToAll(EventUserJoined, userJoinedBody{
		Username:     p.Username,
		ConnectionId: connectionId,
	})

	rooms, err := c.directory.Rooms()
	if err != nil {
		return err
	}
	c.router.ToConnection(connectionId, EventRoomList, rooms)

	return nil
}

func (c *EventCoordinator) handleSendMessage(connectionId string, data json.RawMessage) error {
	p, err := decode[SendMessagePayload](data)
	if err != nil {
		return err
	}

	sender := c.registry.Username(connectionId)
	msg, err := c.messages.Post(sender, connectionId, p.Text, p.Room)
	if err != nil {
		return err
	}
	c.stats.Incr("MessagesSent")

	if p.Room == "" {
		c.router.ToAll(EventReceiveMessage, msg)
	} else {
		c.router.ToRoom(msg.Room, EventReceiveMessage, msg)
	}

	c.notifyRoomUsers(connectionId, msg.Room, sender)

	c.router.ToConnection(connectionId, EventMessageDelivered, deliveredBody{
		MessageId: msg.Id,
		Timestamp: msg.Timestamp,
	})

	return nil
}

// notifyRoomUsers pushes a new-message notification to every other online
// user whose room of record matches the message's room.
func (c *EventCoordinator) notifyRoomUsers(senderId, roomId, sender string) {
	users, err := c.presence.OnlineUsers()
	if err != nil {
		c.log.Printf("online users for notification: %v", err)
		return
	}

	for _, u := range users {
		if u.ConnectionId == senderId || u.CurrentRoom != roomId {
			continue
		}

		c.router.ToConnection(u.ConnectionId, EventNewMessageNotification, notificationBody{
			Room:    roomId,
			Sender:  sender,
			Message: fmt.Sprintf("New message from %s in %s", sender, roomId),
		})
	}
}

func (c *EventCoordinator) handleCreateRoom(connectionId string, data json.RawMessage) error {
	p, err := decode[CreateRoomPayload](data)
	if err != nil {
		return err
	}
	if p.Name == "" {
		return errValidation("room name is required")
	}

	creator := c.registry.Username(connectionId)
	rooms, created, err := c.directory.CreateRoom(p.Name, p.Description, creator)
	if err != nil {
		return err
	}

	// pre-existing room: no broadcast, no error
	if !created {
		return nil
	}
	c.stats.Incr("RoomsCreated")

	c.router.ToAll(EventRoomList, rooms)
	c.router.ToAll(EventNotification, notificationBody{
		Type:    "room_created",
		Message: fmt.Sprintf("Room %q was created by %s", p.Name, creator),
	})

	return nil
}

func (c *EventCoordinator) handleJoinRoom(connectionId string, data json.RawMessage) error {
	p, err := decode[JoinRoomPayload](data)
	if err != nil {
		return err
	}
	if p.Room == "" {
		return errValidation("room is required")
	}

	room, joined, err := c.directory.JoinRoom(connectionId, p.Room)
	if err != nil {
		return err
	}

	// unknown room: silently dropped, no confirmation
	if !joined {
		return nil
	}

	c.router.Subscribe(connectionId, room.Id)
	c.router.ToConnection(connectionId, EventRoomJoined, room)

	c.router.ToRoom(room.Id, EventUserJoined, userJoinedBody{
		Username:     c.registry.Username(connectionId),
		ConnectionId: connectionId,
		Room:         room.Id,
	})

	return nil
}

func (c *EventCoordinator) handleTyping(connectionId string, data json.RawMessage) error {
	p, err := decode[TypingPayload](data)
	if err != nil {
		return err
	}

	c.presence.SetTyping(connectionId, p.IsTyping)
	c.router.ToAll(EventTypingUsers, c.presence.TypingUsernames())

	return nil
}

func (c *EventCoordinator) handlePrivateMessage(connectionId string, data json.RawMessage) error {
	p, err := decode[PrivateMessagePayload](data)
	if err != nil {
		return err
	}
	if p.To == "" {
		return errValidation("recipient is required")
	}

	sender := c.registry.Username(connectionId)
	msg, err := c.messages.PostPrivate(sender, connectionId, p.To, p.Message)
	if err != nil {
		return err
	}
	c.stats.Incr("PrivateMessagesSent")

	c.router.ToConnection(p.To, EventPrivateMessage, msg)
	c.router.ToConnection(connectionId, EventPrivateMessage, msg)

	c.router.ToConnection(p.To, EventNewMessageNotification, notificationBody{
		Sender:  sender,
		Message: fmt.Sprintf("New private message from %s", sender),
	})

	c.router.ToConnection(connectionId, EventMessageDelivered, deliveredBody{
		MessageId: msg.Id,
		Timestamp: msg.Timestamp,
	})

	return nil
}

func (c *EventCoordinator) handleAddReaction(connectionId string, data json.RawMessage) error {
	p, err := decode[ReactionPayload](data)
	if err != nil {
		return err
	}

	// An unknown message id is a silent no-op at the store; the event is
	// broadcast regardless so observers stay in sync with the sender's view.
	if err := c.messages.AddReaction(p.MessageId, connectionId, p.Reaction); err != nil {
		return err
	}

	c.router.ToAll(EventReactionAdded, reactionBody{
		MessageId:    p.MessageId,
		ConnectionId: connectionId,
		Reaction:     p.Reaction,
	})

	return nil
}

func (c *EventCoordinator) handleMessageRead(connectionId string, data json.RawMessage) error {
	p, err := decode[MessageReadPayload](data)
	if err != nil {
		return err
	}

	if err := c.messages.MarkRead(p.MessageId); err != nil {
		return err
	}

	c.router.ToAllExcept(connectionId, EventMessageReadReceipt, readReceiptBody{
		MessageId: p.MessageId,
		Reader:    connectionId,
	})

	return nil
}

func (c *EventCoordinator) handleShareFile(connectionId string, data json.RawMessage) error {
	p, err := decode[ShareFilePayload](data)
	if err != nil {
		return err
	}
	if p.Name == "" || p.Url == "" {
		return errValidation("file name and url are required")
	}

	sender := c.registry.Username(connectionId)
	msg, err := c.messages.Share(sender, connectionId, p.Room, types.File{
		Name: p.Name,
		Url:  p.Url,
		Type: p.Type,
	})
	if err != nil {
		return err
	}
	c.stats.Incr("MessagesSent")

	c.router.ToAll(EventReceiveMessage, msg)

	for _, id := range c.registry.Connections() {
		if id == connectionId {
			continue
		}

		c.router.ToConnection(id, EventNotification, notificationBody{
			Type:    "file_shared",
			Room:    msg.Room,
			Sender:  sender,
			Message: fmt.Sprintf("%s shared a file: %s", sender, p.Name),
		})
	}

	return nil
}

func (c *EventCoordinator) handleLoadMessages(connectionId string, data json.RawMessage) error {
	p, err := decode[LoadMessagesPayload](data)
	if err != nil {
		return err
	}

	room := p.Room
	if room == "" {
		room = DefaultRoom
	}

	page, err := c.messages.Page(room, coerceInt(p.Offset, 0), coerceInt(p.Limit, defaultPageLimit))
	if err != nil {
		return err
	}

	c.router.ToConnection(connectionId, EventMessagesLoaded, messagesLoadedBody{
		Room:     room,
		Messages: page.Messages,
		Total:    page.Total,
		HasMore:  page.HasMore,
	})

	return nil
}

func (c *EventCoordinator) handleSearchMessages(connectionId string, data json.RawMessage) error {
	p, err := decode[SearchMessagesPayload](data)
	if err != nil {
		return err
	}
	if p.Query == "" {
		return errValidation("search query is required")
	}

	results, err := c.messages.Search(p.Query, p.Room)
	if err != nil {
		return err
	}

	c.router.ToConnection(connectionId, EventSearchResults, searchResultsBody{
		Query:   p.Query,
		Results: results,
	})

	return nil
}

// Disconnect tears down all state for a dropped connection and tells the
// remaining connections. Store failures are logged and the teardown keeps
// going; there is no one left to report them to.
func (c *EventCoordinator) Disconnect(connectionId string) {
	username := c.registry.Username(connectionId)
	wasBound := c.registry.Bound(connectionId)

	if err := c.registry.Unbind(connectionId); err != nil {
		c.log.Printf("unbind %q: %v", connectionId, err)
	}

	if err := c.directory.RemoveConnection(connectionId); err != nil {
		c.log.Printf("remove %q from rooms: %v", connectionId, err)
	}

	c.presence.ClearTyping(connectionId)
	c.router.Deregister(connectionId)

	if !wasBound {
		return
	}

	if err := c.broadcastUserList(); err != nil {
		c.log.Printf("broadcast user list: %v", err)
	}

	c.router.ToAll(EventTypingUsers, c.presence.TypingUsernames())
	c.router.ToAll(EventUserLeft, userLeftBody{
		Username:     username,
		ConnectionId: connectionId,
	})
}

func (c *EventCoordinator) broadcastUserList() error {
	users, err := c.presence.OnlineUsers()
	if err != nil {
		return err
	}

	c.router.ToAll(EventUserList, users)
	return nil
}
