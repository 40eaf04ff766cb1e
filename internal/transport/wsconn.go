package transport

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const writeTimeout = 10 * time.Second

// wsConn adapts one upgraded gobwas connection to the relay's Conn interface.
// gobwas writes are not concurrency-safe, so every outbound frame (text,
// ping, close) goes through one mutex; the reader side is owned exclusively
// by the read loop and needs no locking.
type wsConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func newWSConn(conn net.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteText(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(c.conn, ws.OpText, p)
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(c.conn, ws.OpPing, nil)
}

func (c *wsConn) writePong(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(c.conn, ws.OpPong, p)
}

// Close sends a best-effort close frame and tears the TCP connection down.
// Idempotent at the net.Conn level; later calls return the close error.
func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
	c.mu.Unlock()
	return c.conn.Close()
}
