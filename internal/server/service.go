package server

import (
	"log"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
)

const (
	defaultPageLimit = 50
	searchLimit      = 50
)

// MessagePage is one chronological window of a room's history.
type MessagePage struct {
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"has_more"`
}

// MessageService creates, persists and mutates message records.
type MessageService struct {
	store store.Store
	log   *log.Logger
}

func NewMessageService(db store.Store, logger *log.Logger) *MessageService {
	return &MessageService{
		store: db,
		log:   logger,
	}
}

// Post persists a room message, defaulting the sender to the anonymous
// sentinel and the room to the general room. The room's message counter is
// incremented best-effort after the insert; the two writes are not
// transactional.
func (s *MessageService) Post(sender, senderId, text, room string) (types.Message, error) {
	if sender == "" {
		sender = AnonymousUser
	}
	if room == "" {
		room = DefaultRoom
	}

	msg := types.Message{
		Sender:    sender,
		SenderId:  senderId,
		Text:      text,
		Room:      room,
		Delivered: true,
		Timestamp: Now(),
	}

	msg, err := s.store.CreateMessage(msg)
	if err != nil {
		return types.Message{}, err
	}

	if err := s.store.IncrementMessageCount(room); err != nil {
		s.log.Printf("increment message count for %q: %v", room, err)
	}

	return msg, nil
}

// PostPrivate persists a direct message. The room field plays no part in
// its delivery.
func (s *MessageService) PostPrivate(sender, senderId, recipientId, text string) (types.Message, error) {
	if sender == "" {
		sender = AnonymousUser
	}

	msg := types.Message{
		Sender:    sender,
		SenderId:  senderId,
		Text:      text,
		IsPrivate: true,
		Recipient: recipientId,
		Delivered: true,
		Timestamp: Now(),
	}

	return s.store.CreateMessage(msg)
}

// Share persists a file-share message. No text is required.
func (s *MessageService) Share(sender, senderId, room string, file types.File) (types.Message, error) {
	if sender == "" {
		sender = AnonymousUser
	}
	if room == "" {
		room = DefaultRoom
	}

	msg := types.Message{
		Sender:    sender,
		SenderId:  senderId,
		Room:      room,
		IsFile:    true,
		File:      &file,
		Delivered: true,
		Timestamp: Now(),
	}

	msg, err := s.store.CreateMessage(msg)
	if err != nil {
		return types.Message{}, err
	}

	if err := s.store.IncrementMessageCount(room); err != nil {
		s.log.Printf("increment message count for %q: %v", room, err)
	}

	return msg, nil
}

// AddReaction upserts the connection's reaction on the message. An unknown
// message id is a silent no-op.
func (s *MessageService) AddReaction(messageId int64, connectionId, reaction string) error {
	return s.store.SetReaction(messageId, connectionId, reaction)
}

// MarkRead flips the message's read flag. An unknown message id is a
// silent no-op.
func (s *MessageService) MarkRead(messageId int64) error {
	return s.store.MarkMessageRead(messageId)
}

// Page returns one window of the room's history in chronological order.
// The store hands back newest-first rows which are reversed for display.
func (s *MessageService) Page(roomId string, offset, limit int) (MessagePage, error) {
	if roomId == "" {
		roomId = DefaultRoom
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}

	messages, total, err := s.store.RoomMessages(roomId, offset, limit)
	if err != nil {
		return MessagePage{}, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return MessagePage{
		Messages: messages,
		Total:    total,
		HasMore:  offset+limit < total,
	}, nil
}

// Search matches the query case-insensitively against message text or
// sender name, optionally constrained to one room, newest first.
func (s *MessageService) Search(query, roomId string) ([]types.Message, error) {
	return s.store.SearchMessages(query, roomId, searchLimit)
}
