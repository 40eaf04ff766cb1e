package relay

import (
	"sync"
	"sync/atomic"
)

// Conn is the relay's view of one transport-level duplex connection.
// Implementations must be safe for concurrent use; the transport layer owns
// the connection for its I/O lifetime.
type Conn interface {
	// WriteText sends one text frame.
	WriteText(p []byte) error
	// Ping sends a heartbeat probe.
	Ping() error
	// Close terminates the underlying transport connection.
	Close() error
}

// Session wraps one live connection with its liveness flag and, once known,
// the identity bound to it. Outbound frames go through the buffered outbox,
// drained by the transport write pump; enqueueing never blocks, so one slow
// recipient cannot stall a broadcast.
type Session struct {
	id     int64
	conn   Conn
	outbox chan []byte
	done   chan struct{}

	alive     atomic.Bool
	closeOnce sync.Once

	// identity is set under the hub mutex on registration; read for logging.
	identity atomic.Pointer[string]
}

func newSession(id int64, conn Conn, bufSize int) *Session {
	s := &Session{
		id:     id,
		conn:   conn,
		outbox: make(chan []byte, bufSize),
		done:   make(chan struct{}),
	}
	s.alive.Store(true)
	return s
}

// ID returns the numeric connection identifier.
func (s *Session) ID() int64 { return s.id }

// Outbox is drained by the transport write pump.
func (s *Session) Outbox() <-chan []byte { return s.outbox }

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// MarkAlive records a heartbeat acknowledgment. Called by the transport on
// pong frames, out-of-band from the supervisor tick.
func (s *Session) MarkAlive() { s.alive.Store(true) }

// Identity returns the identity bound to this session, or "" before
// registration.
func (s *Session) Identity() string {
	if p := s.identity.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) bindIdentity(identity string) {
	s.identity.Store(&identity)
}

// Enqueue queues one outbound frame without blocking. Returns false when the
// outbox is full or the session is closed; the frame is dropped for this
// recipient only.
func (s *Session) Enqueue(p []byte) bool { return s.enqueue(p) }

func (s *Session) enqueue(p []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- p:
		return true
	default:
		return false
	}
}

// close tears the session down exactly once. The outbox channel is left open
// so concurrent broadcasters can never panic; the write pump exits via done.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
