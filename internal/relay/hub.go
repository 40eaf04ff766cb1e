// Package relay holds the in-memory connection/presence registry and the
// broadcast and liveness engine: identity → session mapping, channel
// membership, fan-out, batch grouping and dead-connection reaping.
package relay

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cleanmate/chat-relay/internal/monitoring"
)

const defaultSendBuffer = 256

// Hub owns the presence registry and the channel directory. Both are mutated
// only under the hub mutex: the frame dispatch path and the liveness
// supervisor share one writer discipline, and registry writes always complete
// before any external call is made.
type Hub struct {
	log     zerolog.Logger
	bufSize int

	nextID atomic.Int64

	mu       sync.Mutex
	sessions map[int64]*Session
	presence presenceTable
	channels channelTable
}

func NewHub(log zerolog.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		log:      log.With().Str("component", "hub").Logger(),
		bufSize:  sendBuffer,
		sessions: make(map[int64]*Session),
		presence: newPresenceTable(),
		channels: newChannelTable(),
	}
}

// OpenSession wraps a freshly accepted connection in a session and starts
// tracking it for liveness probing.
func (h *Hub) OpenSession(conn Conn) *Session {
	s := newSession(h.nextID.Add(1), conn, h.bufSize)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	monitoring.ConnectionsTotal.Inc()
	monitoring.ConnectionsActive.Inc()
	return s
}

// CloseSession removes every trace of a session in one handling step:
// presence entry, channel memberships, liveness tracking. Safe to call from
// the organic close path, the supervisor and the supersede path; extra calls
// are no-ops.
func (h *Hub) CloseSession(s *Session) {
	h.mu.Lock()
	_, tracked := h.sessions[s.id]
	delete(h.sessions, s.id)
	identity, owned := h.presence.removeSession(s)
	if owned {
		h.channels.leaveAll(identity)
	}
	h.mu.Unlock()

	s.close()

	if tracked {
		monitoring.ConnectionsActive.Dec()
		h.log.Debug().
			Int64("client_id", s.id).
			Str("identity", identity).
			Msg("Session closed")
	}
}

// Register binds identity to s, unconditionally overwriting any existing
// mapping (last-registration-wins). The superseded session, if any, is
// returned so the caller can close it out; its channel memberships carry over
// to the new session because both are keyed by the same identity.
func (h *Hub) Register(identity string, s *Session) *Session {
	h.mu.Lock()
	s.bindIdentity(identity)
	prior := h.presence.register(identity, s)
	h.mu.Unlock()

	if prior != nil {
		h.log.Info().
			Str("identity", identity).
			Int64("client_id", s.id).
			Int64("superseded_client_id", prior.id).
			Msg("Identity re-registered, superseding prior connection")
	}
	return prior
}

// Join adds identity to a channel, creating the channel on first join.
func (h *Hub) Join(channelID, identity string) {
	h.mu.Lock()
	h.channels.join(channelID, identity)
	h.mu.Unlock()

	h.log.Debug().
		Str("channel_id", channelID).
		Str("identity", identity).
		Msg("Joined channel")
}

// Lookup resolves an identity to its current session.
func (h *Hub) Lookup(identity string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.lookup(identity)
}

// Members returns the member identities of a channel; empty when unknown.
func (h *Hub) Members(channelID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels.memberList(channelID)
}

// HasChannel reports whether a channel currently has members.
func (h *Hub) HasChannel(channelID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels.contains(channelID)
}

// SessionCount returns the number of tracked connections.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll tears down every session; used on shutdown.
func (h *Hub) CloseAll() {
	for _, s := range h.sessionsSnapshot() {
		h.CloseSession(s)
	}
}

func (h *Hub) sessionsSnapshot() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	snapshot := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	return snapshot
}
