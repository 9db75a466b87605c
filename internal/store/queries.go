package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jcleary/chatwire/internal/types"
)

const messageColumns = "id, sender, sender_id, content, room, is_file, file_name, file_url, file_type, " +
	"is_private, recipient, delivered, is_read, reactions, created_at"

func (s *PgStore) UpsertUser(connectionId, username, currentRoom string) (types.User, error) {
	res := s.conn.QueryRow(
		"INSERT INTO users (connection_id, username, current_room, online, last_seen) "+
			"VALUES ($1, $2, $3, TRUE, $4) "+
			"ON CONFLICT (connection_id) DO UPDATE SET username = EXCLUDED.username, "+
			"current_room = EXCLUDED.current_room, online = TRUE, last_seen = EXCLUDED.last_seen "+
			"RETURNING connection_id, username, current_room, online, last_seen, unread_count",
		connectionId,
		username,
		currentRoom,
		time.Now().UTC(),
	)

	var u types.User
	err := res.Scan(
		&u.ConnectionId,
		&u.Username,
		&u.CurrentRoom,
		&u.Online,
		&u.LastSeen,
		&u.UnreadCount,
	)

	return u, err
}

func (s *PgStore) SetUserOffline(connectionId string, lastSeen time.Time) error {
	_, err := s.conn.Exec(
		"UPDATE users SET online = FALSE, last_seen = $2 WHERE connection_id = $1",
		connectionId,
		lastSeen,
	)

	return err
}

func (s *PgStore) SetUserRoom(connectionId, roomId string) error {
	_, err := s.conn.Exec(
		"UPDATE users SET current_room = $2 WHERE connection_id = $1",
		connectionId,
		roomId,
	)

	return err
}

func (s *PgStore) OnlineUsers() ([]types.User, error) {
	rows, err := s.conn.Query(
		"SELECT connection_id, username, current_room, online, last_seen, unread_count " +
			"FROM users WHERE online = TRUE ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]types.User, 0)
	for rows.Next() {
		var u types.User
		if err = rows.Scan(&u.ConnectionId, &u.Username, &u.CurrentRoom, &u.Online, &u.LastSeen, &u.UnreadCount); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (s *PgStore) GetRoom(roomId string) (types.Room, error) {
	row := s.conn.QueryRow(
		"SELECT id, name, description, members, message_count, is_private, created_by, created_at "+
			"FROM rooms WHERE id = $1 LIMIT 1",
		roomId,
	)

	return scanRoom(row)
}

func (s *PgStore) ListRooms() ([]types.Room, error) {
	rows, err := s.conn.Query(
		"SELECT id, name, description, members, message_count, is_private, created_by, created_at " +
			"FROM rooms ORDER BY created_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]types.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// CreateRoom inserts the room if no room with that id exists. It reports
// whether a row was actually created.
func (s *PgStore) CreateRoom(room types.Room) (bool, error) {
	res, err := s.conn.Exec(
		"INSERT INTO rooms (id, name, description, is_private, created_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING",
		room.Id,
		room.Name,
		room.Description,
		room.IsPrivate,
		room.CreatedBy,
		room.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PgStore) AddRoomMember(roomId, connectionId, username string) error {
	_, err := s.conn.Exec(
		"UPDATE rooms SET members = members || jsonb_build_object($2::text, $3::text) WHERE id = $1",
		roomId,
		connectionId,
		username,
	)

	return err
}

// RemoveMemberEverywhere strips the connection from every room's member
// map. Membership is keyed by connection, not room, so the cleanup is a
// sweep rather than a single lookup.
func (s *PgStore) RemoveMemberEverywhere(connectionId string) error {
	_, err := s.conn.Exec(
		"UPDATE rooms SET members = members - $1 WHERE members ? $1",
		connectionId,
	)

	return err
}

func (s *PgStore) IncrementMessageCount(roomId string) error {
	_, err := s.conn.Exec(
		"UPDATE rooms SET message_count = message_count + 1 WHERE id = $1",
		roomId,
	)

	return err
}

func (s *PgStore) CreateMessage(msg types.Message) (types.Message, error) {
	var fileName, fileUrl, fileType sql.NullString
	if msg.File != nil {
		fileName = sql.NullString{String: msg.File.Name, Valid: true}
		fileUrl = sql.NullString{String: msg.File.Url, Valid: true}
		fileType = sql.NullString{String: msg.File.Type, Valid: true}
	}

	res := s.conn.QueryRow(
		"INSERT INTO messages (sender, sender_id, content, room, is_file, file_name, file_url, file_type, "+
			"is_private, recipient, delivered, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id",
		msg.Sender,
		msg.SenderId,
		msg.Text,
		msg.Room,
		msg.IsFile,
		fileName,
		fileUrl,
		fileType,
		msg.IsPrivate,
		msg.Recipient,
		msg.Delivered,
		msg.Timestamp,
	)

	err := res.Scan(&msg.Id)
	return msg, err
}

func (s *PgStore) SetReaction(messageId int64, connectionId, reaction string) error {
	_, err := s.conn.Exec(
		"UPDATE messages SET reactions = reactions || jsonb_build_object($2::text, $3::text) WHERE id = $1",
		messageId,
		connectionId,
		reaction,
	)

	return err
}

func (s *PgStore) MarkMessageRead(messageId int64) error {
	_, err := s.conn.Exec(
		"UPDATE messages SET is_read = TRUE WHERE id = $1",
		messageId,
	)

	return err
}

// RoomMessages returns a page of the room's messages sorted newest first,
// along with the room's total message row count.
func (s *PgStore) RoomMessages(roomId string, offset, limit int) ([]types.Message, int, error) {
	var total int
	if err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE room = $1", roomId,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.conn.Query(
		"SELECT "+messageColumns+" FROM messages WHERE room = $1 "+
			"ORDER BY created_at DESC OFFSET $2 LIMIT $3",
		roomId,
		offset,
		limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows, limit)
	return messages, total, err
}

func (s *PgStore) SearchMessages(query, roomId string, limit int) ([]types.Message, error) {
	rows, err := s.conn.Query(
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE (content ILIKE $1 OR sender ILIKE $1) AND ($2 = '' OR room = $2) "+
			"ORDER BY created_at DESC LIMIT $3",
		likePattern(query),
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows, limit)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring ILIKE pattern, escaping pattern
// metacharacters so user input always matches literally.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (types.Room, error) {
	var (
		room       types.Room
		rawMembers []byte
	)

	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.Description,
		&rawMembers,
		&room.MessageCount,
		&room.IsPrivate,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	if err != nil {
		return types.Room{}, err
	}

	if err := json.Unmarshal(rawMembers, &room.Members); err != nil {
		return types.Room{}, fmt.Errorf("decode members: %w", err)
	}

	return room, nil
}

func scanMessages(rows *sql.Rows, capHint int) ([]types.Message, error) {
	var messages = make([]types.Message, 0, capHint)
	for rows.Next() {
		var (
			msg                         types.Message
			fileName, fileUrl, fileType sql.NullString
			rawReactions                []byte
		)

		err := rows.Scan(
			&msg.Id,
			&msg.Sender,
			&msg.SenderId,
			&msg.Text,
			&msg.Room,
			&msg.IsFile,
			&fileName,
			&fileUrl,
			&fileType,
			&msg.IsPrivate,
			&msg.Recipient,
			&msg.Delivered,
			&msg.Read,
			&rawReactions,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if msg.IsFile {
			msg.File = &types.File{
				Name: fileName.String,
				Url:  fileUrl.String,
				Type: fileType.String,
			}
		}

		if err := json.Unmarshal(rawReactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
