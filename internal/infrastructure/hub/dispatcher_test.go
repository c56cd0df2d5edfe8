package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refresh-notify/internal/notification"
)

func newTestHub(t *testing.T, clock clockwork.Clock) *Hub {
	t.Helper()

	// A long heartbeat keeps the sweep out of the way unless the test
	// drives the clock itself.
	h := New(Config{HeartbeatInterval: time.Hour}, clock, newTestLogger())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop(context.Background()) })
	return h
}

func TestDispatcher_FanOutToAllConnections(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	c1 := newMockConn(1)
	c2 := newMockConn(2)
	h.Registry().Register("u1", c1)
	h.Registry().Register("u1", c2)

	publisher := notification.Publisher{
		ID:        "u2",
		FirstName: "Ann",
		LastName:  "Lee",
		UserName:  "annlee",
	}
	d.Dispatch(context.Background(), "n1", notification.KindFollowed, publisher, "u1")

	p1 := c1.sentPayloads()
	p2 := c2.sentPayloads()
	require.Len(t, p1, 1)
	require.Len(t, p2, 1)
	assert.Equal(t, p1[0], p2[0], "all connections must receive an identical payload")

	var event notification.Event
	require.NoError(t, json.Unmarshal(p1[0], &event))
	assert.Equal(t, "n1", event.ID)
	assert.Equal(t, notification.KindFollowed, event.Kind)
	assert.Equal(t, publisher, event.Publisher)
	assert.Equal(t, event.CreatedAt.Time(), event.UpdatedAt.Time())
	assert.Equal(t, clock.Now().UnixMilli(), event.CreatedAt.Time().UnixMilli())
}

func TestDispatcher_PayloadFieldOrderAndKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	c1 := newMockConn(1)
	h.Registry().Register("u1", c1)

	d.Dispatch(context.Background(), "n1", notification.KindLikedPost, notification.Publisher{ID: "u2"}, "u1")

	payloads := c1.sentPayloads()
	require.Len(t, payloads, 1)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payloads[0], &decoded))
	for _, key := range []string{"_id", "eventType", "publisher", "createdAt", "updatedAt"} {
		assert.Contains(t, decoded, key)
	}
}

func TestDispatcher_NoConnectionsIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), "n1", notification.KindFollowed, notification.Publisher{ID: "u2"}, "u3")
	})
}

func TestDispatcher_WriteFailurePrunesConnection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	healthy := newMockConn(1)
	dead := newMockConn(2)
	dead.failSends(errors.New("broken pipe"))
	h.Registry().Register("u1", healthy)
	h.Registry().Register("u1", dead)

	d.Dispatch(context.Background(), "n1", notification.KindLikedPost, notification.Publisher{ID: "u2"}, "u1")

	// The healthy connection received the event, the dead one is gone.
	assert.Len(t, healthy.sentPayloads(), 1)
	conns := h.Registry().ConnectionsFor("u1")
	require.Len(t, conns, 1)
	assert.Equal(t, uint64(1), conns[0].ID())
	assert.True(t, dead.IsClosed())
}

func TestDispatcher_SoleConnectionFailureRemovesEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	dead := newMockConn(1)
	dead.failSends(errors.New("broken pipe"))
	h.Registry().Register("u1", dead)

	d.Dispatch(context.Background(), "n1", notification.KindFollowed, notification.Publisher{ID: "u2"}, "u1")

	assert.NotContains(t, h.Registry().Entries(), "u1")
}

func TestDispatcher_RejectsMalformedInput(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	c1 := newMockConn(1)
	h.Registry().Register("u1", c1)

	d.Dispatch(context.Background(), "n1", notification.Kind("shouted"), notification.Publisher{ID: "u2"}, "u1")
	d.Dispatch(context.Background(), "n2", notification.KindFollowed, notification.Publisher{ID: "u2"}, "")

	assert.Empty(t, c1.sentPayloads())
	assert.Len(t, h.Registry().ConnectionsFor("u1"), 1)
}

func TestDispatcher_SingleConnectionPreservesCallOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	c1 := newMockConn(1)
	h.Registry().Register("u1", c1)

	ids := []string{"n1", "n2", "n3", "n4"}
	for _, id := range ids {
		d.Dispatch(context.Background(), id, notification.KindFollowed, notification.Publisher{ID: "u2"}, "u1")
	}

	payloads := c1.sentPayloads()
	require.Len(t, payloads, len(ids))
	for i, payload := range payloads {
		var event notification.Event
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, ids[i], event.ID)
	}
}

func TestDispatcher_CancelledCallerContextStillDelivers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	c1 := newMockConn(1)
	h.Registry().Register("u1", c1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Dispatch(ctx, "n1", notification.KindFollowed, notification.Publisher{ID: "u2"}, "u1")

	// The caller aborting its request is not a transport failure: the
	// event still goes out and the connection stays registered.
	assert.Len(t, c1.sentPayloads(), 1)
	assert.Len(t, h.Registry().ConnectionsFor("u1"), 1)
	assert.False(t, c1.IsClosed())
}

func TestDispatcher_CancelledCallerContextKeepsSSEStream(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	rec := httptest.NewRecorder()
	conn, err := h.OpenSSEStream(context.Background(), "u1", rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 10; i++ {
		d.Dispatch(ctx, "n1", notification.KindFollowed, notification.Publisher{ID: "u2"}, "u1")
	}

	assert.False(t, conn.IsClosed())
	assert.Len(t, h.Registry().ConnectionsFor("u1"), 1)
	assert.Equal(t, 10, strings.Count(rec.Body.String(), "data: "))
}

func TestDispatcher_ConcurrentWithRegistryChurn(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestHub(t, clock)
	d := NewDispatcher(h, clock, newTestLogger())

	keeper := newMockConn(1000)
	h.Registry().Register("u1", keeper)

	const rounds = 50
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			d.Dispatch(context.Background(), "n1", notification.KindLikedPost, notification.Publisher{ID: "u2"}, "u1")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			conn := newMockConn(uint64(i))
			h.Registry().Register("u1", conn)
			h.Registry().Remove("u1", conn)
		}
	}()

	wg.Wait()

	// The stable connection never dropped an event.
	assert.Len(t, keeper.sentPayloads(), rounds)
	conns := h.Registry().ConnectionsFor("u1")
	require.Len(t, conns, 1)
	assert.Equal(t, uint64(1000), conns[0].ID())
}
