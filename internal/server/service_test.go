package server

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/testutil"
	"github.com/jcleary/chatwire/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestMessageService(t *testing.T, db *store.MockStore) *MessageService {
	t.Helper()
	return NewMessageService(db, testutil.TestLogger(t))
}

func TestPost(t *testing.T) {
	t.Run("persists with delivered flag and increments counter", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		db.On("CreateMessage", mock.MatchedBy(func(m types.Message) bool {
			return m.Sender == "alice" && m.Room == "random" && m.Delivered && !m.Timestamp.IsZero()
		})).Return(types.Message{Id: 7, Sender: "alice", Room: "random", Delivered: true}, nil).Once()
		db.On("IncrementMessageCount", "random").Return(nil).Once()

		svc := newTestMessageService(t, db)

		msg, err := svc.Post("alice", "conn-1", "hi", "random")
		assert.NoError(t, err, "expected no error posting message")
		assert.Equal(t, int64(7), msg.Id, "expected generated id on returned message")
	})

	t.Run("defaults sender and room", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		db.On("CreateMessage", mock.MatchedBy(func(m types.Message) bool {
			return m.Sender == AnonymousUser && m.Room == DefaultRoom
		})).Return(types.Message{Id: 1, Sender: AnonymousUser, Room: DefaultRoom}, nil).Once()
		db.On("IncrementMessageCount", DefaultRoom).Return(nil).Once()

		svc := newTestMessageService(t, db)

		_, err := svc.Post("", "conn-1", "hi", "")
		assert.NoError(t, err, "expected no error posting with defaults")
	})

	t.Run("counter increment is best-effort", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		db.On("CreateMessage", mock.Anything).Return(types.Message{Id: 2, Room: DefaultRoom}, nil).Once()
		db.On("IncrementMessageCount", DefaultRoom).Return(errors.New("store down")).Once()

		svc := newTestMessageService(t, db)

		msg, err := svc.Post("alice", "conn-1", "hi", "")
		assert.NoError(t, err, "expected counter failure to not fail the post")
		assert.Equal(t, int64(2), msg.Id, "expected persisted message to be returned")
	})
}

func TestPostPrivate(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	db.On("CreateMessage", mock.MatchedBy(func(m types.Message) bool {
		return m.IsPrivate && m.Recipient == "conn-2" && m.Room == "" && m.Delivered
	})).Return(types.Message{Id: 3, IsPrivate: true, Recipient: "conn-2"}, nil).Once()

	svc := newTestMessageService(t, db)

	msg, err := svc.PostPrivate("alice", "conn-1", "conn-2", "psst")
	assert.NoError(t, err, "expected no error posting private message")
	assert.True(t, msg.IsPrivate, "expected private flag on message")
	db.AssertNotCalled(t, "IncrementMessageCount", mock.Anything)
}

func TestShare(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	db.On("CreateMessage", mock.MatchedBy(func(m types.Message) bool {
		return m.IsFile && m.File != nil && m.File.Name == "report.pdf" && m.Text == ""
	})).Return(types.Message{Id: 4, IsFile: true, Room: DefaultRoom}, nil).Once()
	db.On("IncrementMessageCount", DefaultRoom).Return(nil).Once()

	svc := newTestMessageService(t, db)

	msg, err := svc.Share("alice", "conn-1", "", types.File{Name: "report.pdf", Url: "/files/report.pdf", Type: "application/pdf"})
	assert.NoError(t, err, "expected no error sharing file")
	assert.True(t, msg.IsFile, "expected file flag on message")
}

func TestAddReactionUnknownMessage(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	// unknown ids update zero rows at the store, which is not an error
	db.On("SetReaction", int64(999), "conn-1", "👍").Return(nil).Once()

	svc := newTestMessageService(t, db)
	assert.NoError(t, svc.AddReaction(999, "conn-1", "👍"), "expected unknown message id to be a silent no-op")
}

func TestPage(t *testing.T) {
	t.Run("reverses to chronological order", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		newestFirst := []types.Message{
			{Id: 3, Timestamp: base.Add(2 * time.Minute)},
			{Id: 2, Timestamp: base.Add(time.Minute)},
			{Id: 1, Timestamp: base},
		}
		db.On("RoomMessages", DefaultRoom, 0, defaultPageLimit).Return(newestFirst, 3, nil).Once()

		svc := newTestMessageService(t, db)

		page, err := svc.Page("", 0, 0)
		assert.NoError(t, err, "expected no error paging messages")
		assert.Equal(t, int64(1), page.Messages[0].Id, "expected oldest message first for display")
		assert.Equal(t, int64(3), page.Messages[2].Id, "expected newest message last for display")
		assert.False(t, page.HasMore, "expected no further pages")
	})

	t.Run("pagination boundary", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		full := make([]types.Message, 50)
		for i := range full {
			full[i] = types.Message{Id: int64(120 - i)}
		}
		tail := make([]types.Message, 20)
		for i := range tail {
			tail[i] = types.Message{Id: int64(20 - i)}
		}

		db.On("RoomMessages", "general", 0, 50).Return(full, 120, nil).Once()
		db.On("RoomMessages", "general", 100, 50).Return(tail, 120, nil).Once()

		svc := newTestMessageService(t, db)

		first, err := svc.Page("general", 0, 50)
		assert.NoError(t, err, "expected no error on first page")
		assert.Len(t, first.Messages, 50, "expected a full first page")
		assert.True(t, first.HasMore, "expected more pages after the first")
		assert.Equal(t, 120, first.Total, "expected total row count")

		last, err := svc.Page("general", 100, 50)
		assert.NoError(t, err, "expected no error on last page")
		assert.Len(t, last.Messages, 20, "expected the remaining 20 messages")
		assert.False(t, last.HasMore, "expected no more pages")
	})

	t.Run("clamps negative offset and limit", func(t *testing.T) {
		db := &store.MockStore{}
		defer db.AssertExpectations(t)

		db.On("RoomMessages", DefaultRoom, 0, defaultPageLimit).Return([]types.Message{}, 0, nil).Once()

		svc := newTestMessageService(t, db)

		_, err := svc.Page(DefaultRoom, -10, -5)
		assert.NoError(t, err, "expected negative inputs to be clamped, not fail")
	})
}

func TestSearch(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	results := []types.Message{{Id: 1, Text: "Hello there"}, {Id: 2, Sender: "Hello123"}}
	db.On("SearchMessages", "hello", "", searchLimit).Return(results, nil).Once()

	svc := newTestMessageService(t, db)

	found, err := svc.Search("hello", "")
	assert.NoError(t, err, "expected no error searching")
	assert.Equal(t, results, found, "expected matches on text or sender")
}

func TestSearchScopedToRoom(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	db.On("SearchMessages", "deploy", "dev-talk", searchLimit).Return([]types.Message{}, nil).Once()

	svc := newTestMessageService(t, db)

	_, err := svc.Search("deploy", "dev-talk")
	assert.NoError(t, err, fmt.Sprintf("expected no error searching room %q", "dev-talk"))
}
