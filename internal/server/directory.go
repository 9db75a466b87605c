package server

import (
	"database/sql"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/types"
)

const (
	DefaultRoom = "general"
	RandomRoom  = "random"
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// RoomDirectory maintains room records and their member maps. A connection
// belongs to exactly one room of record at a time from the directory's
// point of view, even though the transport layer may keep it subscribed to
// more than one channel label.
type RoomDirectory struct {
	store    store.Store
	registry *ConnectionRegistry
	log      *log.Logger
}

func NewRoomDirectory(db store.Store, registry *ConnectionRegistry, logger *log.Logger) *RoomDirectory {
	return &RoomDirectory{
		store:    db,
		registry: registry,
		log:      logger,
	}
}

// Slugify derives a room id from its display name by lower-casing and
// collapsing whitespace runs into single separators.
func Slugify(name string) string {
	return whitespaceRuns.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// EnsureDefaultRooms idempotently creates any of the given rooms that do
// not yet exist.
func (d *RoomDirectory) EnsureDefaultRooms(defaults []types.Room) error {
	for _, room := range defaults {
		if room.CreatedAt.IsZero() {
			room.CreatedAt = Now()
		}

		if _, err := d.store.CreateRoom(room); err != nil {
			return err
		}
	}

	return nil
}

// CreateRoom creates the room unless one with the derived id already
// exists, in which case it is a no-op rather than an error. It returns the
// full room list and whether a new room was created.
func (d *RoomDirectory) CreateRoom(name, description, creator string) ([]types.Room, bool, error) {
	room := types.Room{
		Id:          Slugify(name),
		Name:        name,
		Description: description,
		CreatedBy:   creator,
		CreatedAt:   Now(),
	}

	created, err := d.store.CreateRoom(room)
	if err != nil {
		return nil, false, err
	}

	rooms, err := d.Rooms()
	if err != nil {
		return nil, false, err
	}

	return rooms, created, nil
}

// JoinRoom transfers the connection's membership to the target room: it is
// removed from every other member map, the user's room of record is
// updated, and the connection is added to the target's member map. A join
// to a room that does not exist is silently dropped. Store failures abort
// the step they occur in; earlier mutations are not rolled back.
func (d *RoomDirectory) JoinRoom(connectionId, roomId string) (types.Room, bool, error) {
	room, err := d.store.GetRoom(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d.log.Printf("join to unknown room %q dropped", roomId)
			return types.Room{}, false, nil
		}
		return types.Room{}, false, err
	}

	if err := d.store.RemoveMemberEverywhere(connectionId); err != nil {
		return types.Room{}, false, err
	}

	if err := d.store.SetUserRoom(connectionId, roomId); err != nil {
		return types.Room{}, false, err
	}
	d.registry.SetRoom(connectionId, roomId)

	username := d.registry.Username(connectionId)
	if err := d.store.AddRoomMember(roomId, connectionId, username); err != nil {
		return types.Room{}, false, err
	}

	if room.Members == nil {
		room.Members = make(map[string]string)
	}
	room.Members[connectionId] = username

	return room, true, nil
}

// RemoveConnection strips the connection from every room's member map on
// disconnect.
func (d *RoomDirectory) RemoveConnection(connectionId string) error {
	return d.store.RemoveMemberEverywhere(connectionId)
}

func (d *RoomDirectory) Rooms() ([]types.Room, error) {
	return d.store.ListRooms()
}
