package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/mcdev12/draftroom/go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	id   string
	room string
	err  error

	mu       sync.Mutex
	received [][]byte
}

func (c *fakeChannel) ID() string   { return c.id }
func (c *fakeChannel) Room() string { return c.room }

func (c *fakeChannel) Send(data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, data)
	return nil
}

func (c *fakeChannel) types(t *testing.T) []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.EventType
	for _, raw := range c.received {
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		out = append(out, ev.Type)
	}
	return out
}

type fakeRegistry map[string][]Channel

func (r fakeRegistry) ChannelsFor(participant string) []Channel { return r[participant] }

type recordingSink struct {
	mu   sync.Mutex
	seen []string
}

func (s *recordingSink) Publish(_ context.Context, ev events.Event, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev.ID)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func mustEvent(t *testing.T, code string, typ events.EventType, payload any) events.Event {
	t.Helper()
	ev, err := events.New(code, typ, time.Now(), payload)
	require.NoError(t, err)
	return ev
}

func TestDeliverFansOutInOrder(t *testing.T) {
	alice := &fakeChannel{id: "a1", room: "ROOM"}
	alicePhone := &fakeChannel{id: "a2", room: "ROOM"}
	bob := &fakeChannel{id: "b1", room: "ROOM"}
	bobElsewhere := &fakeChannel{id: "b2", room: "OTHER"}
	reg := fakeRegistry{
		"alice": {alice, alicePhone},
		"bob":   {bob, bobElsewhere},
	}
	sink := &recordingSink{}
	metrics := NewCounterMetrics()
	b := NewBroadcaster(reg, DefaultBroadcasterConfig(), WithSink(sink), WithMetrics(metrics))

	b.deliver(Envelope{
		RoomCode: "ROOM",
		Members:  []string{"alice", "bob", "carol", "alice"},
		Events: []events.Event{
			mustEvent(t, "ROOM", events.EventTypeDraftPick, events.DraftPickPayload{Key: "a"}),
			mustEvent(t, "ROOM", events.EventTypeDraftComplete, events.DraftCompletePayload{TotalPicks: 1}),
		},
	})

	want := []events.EventType{events.EventTypeDraftPick, events.EventTypeDraftComplete}
	assert.Equal(t, want, alice.types(t))
	assert.Equal(t, want, alicePhone.types(t))
	assert.Equal(t, want, bob.types(t))
	assert.Empty(t, bobElsewhere.types(t))
	require.Len(t, b.sinks, 1)
	assert.Len(t, b.sinks[0].queue, 2)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.Events)
	assert.Equal(t, uint64(6), snap.Deliveries)
}

func TestDeliverContinuesAfterChannelFailure(t *testing.T) {
	broken := &fakeChannel{id: "x", room: "ROOM", err: ErrChannelFull}
	ok := &fakeChannel{id: "y", room: "ROOM"}
	reg := fakeRegistry{"alice": {broken}, "bob": {ok}}
	metrics := NewCounterMetrics()
	b := NewBroadcaster(reg, DefaultBroadcasterConfig(), WithMetrics(metrics))

	b.deliver(Envelope{
		RoomCode: "ROOM",
		Members:  []string{"alice", "bob"},
		Events:   []events.Event{mustEvent(t, "ROOM", events.EventTypeReadyUpdate, events.ReadyUpdatePayload{UUID: "bob", Ready: true})},
	})

	assert.Equal(t, []events.EventType{events.EventTypeReadyUpdate}, ok.types(t))
	assert.Equal(t, uint64(1), metrics.Snapshot().SendFailures)
}

func TestStartPreservesBroadcastOrder(t *testing.T) {
	ch := &fakeChannel{id: "a1", room: "ROOM"}
	sink := &recordingSink{}
	b := NewBroadcaster(fakeRegistry{"alice": {ch}}, BroadcasterConfig{QueueSize: 64}, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	const n = 50
	for i := 0; i < n; i++ {
		b.Broadcast("ROOM", []string{"alice"},
			mustEvent(t, "ROOM", events.EventTypeDraftPick, events.DraftPickPayload{Index: i}))
	}

	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.received) == n
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sink.count() == n }, 2*time.Second, 5*time.Millisecond)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i, raw := range ch.received {
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		p, err := events.ParseEventPayload(ev)
		require.NoError(t, err)
		assert.Equal(t, i, p.(*events.DraftPickPayload).Index)
	}
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(fakeRegistry{}, BroadcasterConfig{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			b.Broadcast("ROOM", []string{"alice"}, mustEvent(t, "ROOM", events.EventTypeRoomUpdate, events.RoomUpdatePayload{}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after the broadcaster stopped")
	}
}

func TestConnectionSendBufferFull(t *testing.T) {
	cm := NewConnectionManager(ConnectionConfig{SendBufferSize: 1}, nil)
	conn := &Connection{id: "c1", userID: "alice", roomCode: "ROOM", manager: cm, send: make(chan []byte, 1)}
	cm.registerConnection(conn)

	assert.True(t, cm.Connected("ROOM", "alice"))
	require.Len(t, cm.ChannelsFor("alice"), 1)

	require.NoError(t, conn.Send([]byte("one")))
	assert.ErrorIs(t, conn.Send([]byte("two")), ErrChannelFull)

	assert.False(t, cm.Connected("ROOM", "alice"))
	assert.Empty(t, cm.ChannelsFor("alice"))
	assert.ErrorIs(t, conn.Send([]byte("three")), ErrChannelClosed)

	// unregistering twice is harmless
	cm.unregisterConnection(conn)
}

func TestEventSubject(t *testing.T) {
	ev := mustEvent(t, "ABC1234", events.EventTypeDraftPick, events.DraftPickPayload{})
	assert.Equal(t, "draft.events.ABC1234.draft_pick", EventSubject("draft.events", ev))
}

type fakeSnapshots map[string]events.SnapshotPayload

func (f fakeSnapshots) Snapshot(_ context.Context, code string) (events.SnapshotPayload, error) {
	snap, ok := f[code]
	if !ok {
		return events.SnapshotPayload{}, room.ErrRoomNotFound
	}
	return snap, nil
}

type queryIdentity struct{}

func (queryIdentity) CurrentIdentity(r *http.Request) (identity.Identity, error) {
	id := r.URL.Query().Get("user")
	if id == "" {
		return identity.Identity{}, identity.ErrMissingToken
	}
	return identity.Identity{UserID: id}, nil
}

func TestWebSocketSnapshotThenEvents(t *testing.T) {
	snaps := fakeSnapshots{"ROOM": {
		Code:    "ROOM",
		Admin:   "alice",
		Status:  models.RoomStatusLobby,
		Members: []string{"alice", "bob"},
	}}
	cm := NewConnectionManager(DefaultConnectionConfig(), snaps)
	metrics := NewCounterMetrics()
	b := NewBroadcaster(cm, DefaultBroadcasterConfig(), WithMetrics(metrics))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	r := chi.NewRouter()
	NewWebSocketHandler(cm, queryIdentity{}, metrics).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()
	defer cm.CloseAll()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Run("rejects outsiders", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?room=ROOM&user=mallory", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.False(t, cm.Connected("ROOM", "mallory"))
	})

	t.Run("unknown room", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?room=NOPE&user=alice", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("snapshot first", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?room=ROOM&user=bob", nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return cm.Connected("ROOM", "bob") }, time.Second, 5*time.Millisecond)
		b.Broadcast("ROOM", []string{"alice", "bob"},
			mustEvent(t, "ROOM", events.EventTypePlayerUpdate, events.PlayerUpdatePayload{UUID: "carol", Action: events.PlayerActionJoined}))

		var first, second events.Event
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&first))
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, events.EventTypeSnapshot, first.Type)
		assert.Equal(t, events.EventTypePlayerUpdate, second.Type)

		stats := cm.GetConnectionStats()
		assert.Equal(t, 1, stats.TotalConnections)
		assert.Equal(t, 1, stats.RoomConnections["ROOM"])
	})
}

func TestNoRegistryMatchIsNotAnError(t *testing.T) {
	b := NewBroadcaster(fakeRegistry{}, DefaultBroadcasterConfig())
	assert.NotPanics(t, func() {
		b.deliver(Envelope{
			RoomCode: "ROOM",
			Members:  []string{"ghost"},
			Events:   []events.Event{mustEvent(t, "ROOM", events.EventTypeRoomUpdate, events.RoomUpdatePayload{Update: events.RoomUpdateClosed})},
		})
	})
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	metrics := NewCounterMetrics()
	b := NewBroadcaster(fakeRegistry{}, BroadcasterConfig{QueueSize: 2}, WithMetrics(metrics))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			b.Broadcast("ROOM", []string{"alice"}, mustEvent(t, "ROOM", events.EventTypeRoomUpdate, events.RoomUpdatePayload{}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	assert.Len(t, b.queue, 2)
	assert.Equal(t, uint64(1), metrics.Snapshot().Dropped)
}

// stalledSink never finishes a publish until the broadcaster stops.
type stalledSink struct{}

func (stalledSink) Publish(ctx context.Context, _ events.Event, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

type idleTimer struct{}

func (idleTimer) Arm(string, int, time.Duration) {}
func (idleTimer) Cancel(string)                  {}

func TestStalledSinkDoesNotBlockRooms(t *testing.T) {
	watcher := &fakeChannel{id: "z1", room: "WATCH"}
	metrics := NewCounterMetrics()
	b := NewBroadcaster(fakeRegistry{"zed": {watcher}},
		BroadcasterConfig{QueueSize: 4, SinkQueueSize: 4},
		WithSink(stalledSink{}),
		WithMetrics(metrics),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	cat, err := catalog.Default()
	require.NoError(t, err)
	coord := room.NewCoordinator(storage.NewMemoryStore(), cat, b, idleTimer{})

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 20; i++ {
			if _, err := coord.CreateRoom(ctx, fmt.Sprintf("user-%d", i)); err != nil {
				done <- err
				return
			}
		}
		_, err := coord.CreateRoom(ctx, "zed")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("room operations blocked behind a stalled sink")
	}

	// channel delivery keeps flowing while the sink is stuck
	require.Eventually(t, func() bool { return len(b.queue) == 0 }, 2*time.Second, 5*time.Millisecond)
	b.Broadcast("WATCH", []string{"zed"},
		mustEvent(t, "WATCH", events.EventTypeRoomUpdate, events.RoomUpdatePayload{Update: events.RoomUpdateConfig}))
	require.Eventually(t, func() bool {
		watcher.mu.Lock()
		defer watcher.mu.Unlock()
		return len(watcher.received) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotZero(t, metrics.Snapshot().Dropped)
}

func TestConnectedIsScopedToRoom(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig(), nil)
	conn := &Connection{id: "c1", userID: "alice", roomCode: "OTHER", manager: cm, send: make(chan []byte, 1)}
	cm.registerConnection(conn)
	defer cm.unregisterConnection(conn)

	assert.True(t, cm.Connected("OTHER", "alice"))
	assert.False(t, cm.Connected("ROOM", "alice"))
	assert.False(t, cm.Connected("OTHER", "bob"))
}
