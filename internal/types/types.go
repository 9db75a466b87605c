package types

import (
	"time"
)

type User struct {
	ConnectionId string    `json:"connection_id"`
	Username     string    `json:"username"`
	CurrentRoom  string    `json:"current_room"`
	Online       bool      `json:"online"`
	LastSeen     time.Time `json:"last_seen"`
	UnreadCount  int       `json:"unread_count"`
}

type Room struct {
	Id           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Members      map[string]string `json:"members"`
	MessageCount int               `json:"message_count"`
	IsPrivate    bool              `json:"is_private"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
}

// File describes an upload attached to a message.
type File struct {
	Name string `json:"name"`
	Url  string `json:"url"`
	Type string `json:"type"`
}

type Message struct {
	Id        int64             `json:"id"`
	Sender    string            `json:"sender"`
	SenderId  string            `json:"sender_id"`
	Text      string            `json:"text,omitempty"`
	Room      string            `json:"room,omitempty"`
	IsFile    bool              `json:"is_file,omitempty"`
	File      *File             `json:"file,omitempty"`
	IsPrivate bool              `json:"is_private,omitempty"`
	Recipient string            `json:"recipient,omitempty"`
	Delivered bool              `json:"delivered"`
	Read      bool              `json:"read"`
	Reactions map[string]string `json:"reactions,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
