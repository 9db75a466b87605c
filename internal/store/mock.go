package store

import (
	"time"

	"github.com/jcleary/chatwire/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockStore) UpsertUser(connectionId, username, currentRoom string) (types.User, error) {
	args := m.Called(connectionId, username, currentRoom)
	return args.Get(0).(types.User), args.Error(1)
}
func (m *MockStore) SetUserOffline(connectionId string, lastSeen time.Time) error {
	args := m.Called(connectionId, lastSeen)
	return args.Error(0)
}
func (m *MockStore) SetUserRoom(connectionId, roomId string) error {
	args := m.Called(connectionId, roomId)
	return args.Error(0)
}
func (m *MockStore) OnlineUsers() ([]types.User, error) {
	args := m.Called()
	return args.Get(0).([]types.User), args.Error(1)
}
func (m *MockStore) GetRoom(roomId string) (types.Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(types.Room), args.Error(1)
}
func (m *MockStore) ListRooms() ([]types.Room, error) {
	args := m.Called()
	return args.Get(0).([]types.Room), args.Error(1)
}
func (m *MockStore) CreateRoom(room types.Room) (bool, error) {
	args := m.Called(room)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) AddRoomMember(roomId, connectionId, username string) error {
	args := m.Called(roomId, connectionId, username)
	return args.Error(0)
}
func (m *MockStore) RemoveMemberEverywhere(connectionId string) error {
	args := m.Called(connectionId)
	return args.Error(0)
}
func (m *MockStore) IncrementMessageCount(roomId string) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockStore) CreateMessage(msg types.Message) (types.Message, error) {
	args := m.Called(msg)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockStore) SetReaction(messageId int64, connectionId, reaction string) error {
	args := m.Called(messageId, connectionId, reaction)
	return args.Error(0)
}
func (m *MockStore) MarkMessageRead(messageId int64) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockStore) RoomMessages(roomId string, offset, limit int) ([]types.Message, int, error) {
	args := m.Called(roomId, offset, limit)
	return args.Get(0).([]types.Message), args.Int(1), args.Error(2)
}
func (m *MockStore) SearchMessages(query, roomId string, limit int) ([]types.Message, error) {
	args := m.Called(query, roomId, limit)
	return args.Get(0).([]types.Message), args.Error(1)
}
