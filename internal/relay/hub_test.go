package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	pings  int
	closed bool
}

func (c *fakeConn) WriteText(p []byte) error { return nil }

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHub() *Hub {
	return NewHub(zerolog.Nop(), 16)
}

// drainOutbox empties a session's outbox and returns the queued payloads.
func drainOutbox(t *testing.T, s *Session) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		select {
		case p := <-s.Outbox():
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestRegisterLastWins(t *testing.T) {
	hub := newTestHub()

	first := hub.OpenSession(&fakeConn{})
	second := hub.OpenSession(&fakeConn{})

	require.Nil(t, hub.Register("alice", first))
	prior := hub.Register("alice", second)
	require.Same(t, first, prior)

	got, ok := hub.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegisterSameSessionIdempotent(t *testing.T) {
	hub := newTestHub()
	s := hub.OpenSession(&fakeConn{})

	require.Nil(t, hub.Register("alice", s))
	assert.Nil(t, hub.Register("alice", s))

	got, ok := hub.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestCloseSupersededKeepsNewRegistration(t *testing.T) {
	hub := newTestHub()

	oldConn := &fakeConn{}
	first := hub.OpenSession(oldConn)
	require.Nil(t, hub.Register("alice", first))
	hub.Join("room-1", "alice")

	second := hub.OpenSession(&fakeConn{})
	prior := hub.Register("alice", second)
	require.NotNil(t, prior)
	hub.CloseSession(prior)

	// The new session still owns the identity and the channel membership
	// keyed by it.
	got, ok := hub.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Contains(t, hub.Members("room-1"), "alice")
	assert.True(t, oldConn.isClosed())
}

func TestCloseSessionCleansUpEverything(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{}
	s := hub.OpenSession(conn)
	require.Nil(t, hub.Register("alice", s))
	hub.Join("room-1", "alice")
	hub.Join("room-2", "alice")

	hub.CloseSession(s)

	_, ok := hub.Lookup("alice")
	assert.False(t, ok)
	assert.False(t, hub.HasChannel("room-1"))
	assert.False(t, hub.HasChannel("room-2"))
	assert.Equal(t, 0, hub.SessionCount())
	assert.True(t, conn.isClosed())

	// Enqueue after close must fail rather than panic.
	assert.False(t, s.enqueue([]byte("late")))
}

func TestEmptyChannelIsPruned(t *testing.T) {
	hub := newTestHub()

	a := hub.OpenSession(&fakeConn{})
	b := hub.OpenSession(&fakeConn{})
	require.Nil(t, hub.Register("alice", a))
	require.Nil(t, hub.Register("bob", b))
	hub.Join("room-1", "alice")
	hub.Join("room-1", "bob")

	hub.CloseSession(a)
	assert.True(t, hub.HasChannel("room-1"))
	assert.Equal(t, []string{"bob"}, hub.Members("room-1"))

	hub.CloseSession(b)
	assert.False(t, hub.HasChannel("room-1"))
	assert.Empty(t, hub.Members("room-1"))
}

func TestDeliverToOfflineIsNoop(t *testing.T) {
	hub := newTestHub()
	assert.False(t, hub.DeliverTo("ghost", []byte("hello")))
}

func TestDeliverToChannelExcludesAndSkipsOffline(t *testing.T) {
	hub := newTestHub()

	a := hub.OpenSession(&fakeConn{})
	b := hub.OpenSession(&fakeConn{})
	require.Nil(t, hub.Register("alice", a))
	require.Nil(t, hub.Register("bob", b))
	hub.Join("room-1", "alice")
	hub.Join("room-1", "bob")
	// Carol joined but her connection is gone; membership alone must not
	// break the fan-out.
	hub.Join("room-1", "carol")

	delivered := hub.DeliverToChannel("room-1", []byte("hello"), "alice")
	assert.Equal(t, 1, delivered)
	assert.Empty(t, drainOutbox(t, a))
	require.Len(t, drainOutbox(t, b), 1)
}

func TestDeliverToChannelBufferFullDropsRecipientOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 1)

	a := hub.OpenSession(&fakeConn{})
	b := hub.OpenSession(&fakeConn{})
	require.Nil(t, hub.Register("alice", a))
	require.Nil(t, hub.Register("bob", b))
	hub.Join("room-1", "alice")
	hub.Join("room-1", "bob")

	// Fill alice's outbox so the next fan-out overflows it.
	require.True(t, a.enqueue([]byte("backlog")))

	delivered := hub.DeliverToChannel("room-1", []byte("hello"))
	assert.Equal(t, 1, delivered)
	require.Len(t, drainOutbox(t, b), 1)
}

// Scenario: two members of the same channel exchange a message and both see
// it, sender included.
func TestChannelMessageReachesAllMembers(t *testing.T) {
	hub := newTestHub()
	h := NewHandler(hub, &fakeBackend{}, zerolog.Nop())

	u1 := hub.OpenSession(&fakeConn{})
	u2 := hub.OpenSession(&fakeConn{})
	h.HandleFrame(context.Background(), u1, []byte(`{"type":"join","sender":"u1","channel_id":"c1"}`))
	h.HandleFrame(context.Background(), u2, []byte(`{"type":"join","sender":"u2","channel_id":"c1"}`))
	drainOutbox(t, u1) // history replies
	drainOutbox(t, u2)

	h.HandleFrame(context.Background(), u1, []byte(`{"channel_id":"c1","sender":"u1","message":"hi"}`))

	for _, s := range []*Session{u1, u2} {
		frames := drainOutbox(t, s)
		require.Len(t, frames, 1)

		var got map[string]any
		require.NoError(t, json.Unmarshal(frames[0], &got))
		assert.Equal(t, "c1", got["channel_id"])
		assert.Equal(t, "u1", got["sender"])
		assert.Equal(t, "hi", got["message"])
	}
}
