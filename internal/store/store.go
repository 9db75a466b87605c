package store

import (
	"time"

	"github.com/jcleary/chatwire/internal/types"
)

// Store is the persistent collection layer for users, rooms and messages.
// Each individual operation is atomic at the store level; callers that
// compose several operations get no cross-operation transaction.
type Store interface {
	Ping() error
	UpsertUser(connectionId, username, currentRoom string) (types.User, error)
	SetUserOffline(connectionId string, lastSeen time.Time) error
	SetUserRoom(connectionId, roomId string) error
	OnlineUsers() ([]types.User, error)
	GetRoom(roomId string) (types.Room, error)
	ListRooms() ([]types.Room, error)
	CreateRoom(room types.Room) (bool, error)
	AddRoomMember(roomId, connectionId, username string) error
	RemoveMemberEverywhere(connectionId string) error
	IncrementMessageCount(roomId string) error
	CreateMessage(msg types.Message) (types.Message, error)
	SetReaction(messageId int64, connectionId, reaction string) error
	MarkMessageRead(messageId int64) error
	RoomMessages(roomId string, offset, limit int) ([]types.Message, int, error)
	SearchMessages(query, roomId string, limit int) ([]types.Message, error)
}
