package server

import (
	"encoding/json"
	"strconv"
	"time"
)

// Inbound event names.
const (
	EventUserJoin       = "user_join"
	EventSendMessage    = "send_message"
	EventCreateRoom     = "create_room"
	EventJoinRoom       = "join_room"
	EventTyping         = "typing"
	EventPrivateMessage = "private_message"
	EventAddReaction    = "add_reaction"
	EventMessageRead    = "message_read"
	EventShareFile      = "share_file"
	EventLoadMessages   = "load_messages"
	EventSearchMessages = "search_messages"
)

// Outbound event names.
const (
	EventUserList               = "user_list"
	EventUserJoined             = "user_joined"
	EventReceiveMessage         = "receive_message"
	EventRoomList               = "room_list"
	EventRoomJoined             = "room_joined"
	EventTypingUsers            = "typing_users"
	EventNewMessageNotification = "new_message_notification"
	EventMessageDelivered       = "message_delivered"
	EventReactionAdded          = "reaction_added"
	EventMessageReadReceipt     = "message_read_receipt"
	EventNotification           = "notification"
	EventMessagesLoaded         = "messages_loaded"
	EventSearchResults          = "search_results"
	EventUserLeft               = "user_left"
	EventError                  = "error"
)

// Envelope is the wire frame for every client and server event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type UserJoinPayload struct {
	Username string `json:"username"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
	Room string `json:"room"`
}

type CreateRoomPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type JoinRoomPayload struct {
	Room string `json:"room"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type PrivateMessagePayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type ReactionPayload struct {
	MessageId int64  `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type MessageReadPayload struct {
	MessageId int64 `json:"message_id"`
}

type ShareFilePayload struct {
	Name string `json:"name"`
	Url  string `json:"url"`
	Type string `json:"type"`
	Room string `json:"room"`
}

// LoadMessagesPayload carries untyped offset/limit so that clients sending
// strings or junk get coerced defaults instead of a decode failure.
type LoadMessagesPayload struct {
	Room   string `json:"room"`
	Offset any    `json:"offset"`
	Limit  any    `json:"limit"`
}

type SearchMessagesPayload struct {
	Query string `json:"query"`
	Room  string `json:"room"`
}

// ValidationError marks a malformed or incomplete client payload. It is
// caught at the dispatch boundary and reported to the sender only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func errValidation(reason string) error {
	return &ValidationError{Reason: reason}
}

// newEvent builds an outbound envelope, marshalling the payload. A payload
// that cannot be marshalled yields an envelope with no data rather than an
// error since every payload type here is JSON-safe.
func newEvent(event string, v any) *Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		return &Envelope{Event: event}
	}

	return &Envelope{Event: event, Data: data}
}

// coerceInt converts the loosely typed numeric fields of client payloads.
// Negative and unparseable values fall back to def.
func coerceInt(v any, def int) int {
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case string:
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}

	if n < 0 {
		return def
	}
	return n
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
