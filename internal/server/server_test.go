package server

import (
	"context"
	"testing"
	"time"

	"github.com/jcleary/chatwire/internal/stats"
	"github.com/jcleary/chatwire/internal/store"
	"github.com/jcleary/chatwire/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestChatServer creates a ChatServer wired to mocks, covering the
// startup expectations every construction incurs.
func newTestChatServer(t *testing.T, db *store.MockStore, su *stats.MockStatsUpdater) *ChatServer {
	t.Helper()

	db.On("CreateRoom", mock.Anything).Return(false, nil).Times(2)
	su.On("RegisterMetric", mock.Anything).Times(4)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func TestNewChatServer(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", "NumActiveConnections").Once()
	su.On("RegisterMetric", "MessagesSent").Once()
	su.On("RegisterMetric", "PrivateMessagesSent").Once()
	su.On("RegisterMetric", "RoomsCreated").Once()

	// both default rooms are ensured at startup
	db.On("CreateRoom", mock.Anything).Return(true, nil).Times(2)

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.Equal(t, logger, cs.log, "expected logger to be set")
	assert.Equal(t, db, cs.store, "expected store to be set")
	assert.NotNil(t, cs.Coordinator(), "expected coordinator to be initialized")
	assert.NotNil(t, cs.Messages(), "expected message service to be initialized")
	assert.NotNil(t, cs.RegisterChan, "expected RegisterChan to be initialized")
	assert.NotNil(t, cs.deRegisterChan, "expected deRegisterChan to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func TestAddRemoveClient(t *testing.T) {
	db := &store.MockStore{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Decr", "NumActiveConnections").Once()

	cs := newTestChatServer(t, db, su)

	client := &Client{id: "conn-1", log: testutil.TestLogger(t), send: make(chan *Envelope, 1)}
	cs.addClient(client)
	assert.Contains(t, cs.clients, client, "expected client in client set")

	// the router now routes to the client
	cs.router.ToConnection("conn-1", EventNotification, notificationBody{Message: "hi"})
	assert.Len(t, client.send, 1, "expected router to deliver to registered client")

	cs.removeClient(client)
	assert.NotContains(t, cs.clients, client, "expected client removed from client set")

	// removing an unknown client must not decrement the gauge again
	cs.removeClient(client)
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, &store.MockStore{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case req := <-cs.stop:
				assert.NotNil(t, req.done, "expected done channel in stop request")
				close(req.done)
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, &store.MockStore{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		go func() {
			select {
			case <-cs.stop:
				// never close req.done to simulate a hang
			case <-time.After(time.Second):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded error, got %v", err)
	})
}

func TestChatServerShutdown_Integration(t *testing.T) {
	cs := newTestChatServer(t, &store.MockStore{}, &stats.MockStatsUpdater{})
	go cs.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := cs.Shutdown(ctx)
	assert.NoError(t, err, "expected successful shutdown without error")
}
