// Package transport owns the HTTP listener: websocket upgrades, the
// per-connection read loop and write pump, and the health and metrics
// endpoints.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cleanmate/chat-relay/internal/config"
	"github.com/cleanmate/chat-relay/internal/monitoring"
	"github.com/cleanmate/chat-relay/internal/protocol"
	"github.com/cleanmate/chat-relay/internal/relay"
)

// Server accepts websocket clients and bridges them to the relay hub. Each
// connection gets two goroutines: a read loop feeding frames to the handler
// and a write pump draining the session outbox.
type Server struct {
	cfg     *config.Config
	log     zerolog.Logger
	hub     *relay.Hub
	handler *relay.Handler
	stats   *monitoring.StatsCollector

	// connectionsSem caps concurrent connections; a slot is held for the
	// connection's whole lifetime.
	connectionsSem chan struct{}

	httpServer *http.Server
}

func NewServer(cfg *config.Config, log zerolog.Logger, hub *relay.Hub, handler *relay.Handler, stats *monitoring.StatsCollector) *Server {
	s := &Server{
		cfg:            cfg,
		log:            log.With().Str("component", "transport").Logger(),
		hub:            hub,
		handler:        handler,
		stats:          stats,
		connectionsSem: make(chan struct{}, cfg.MaxConnections),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", monitoring.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is canceled, then drains: the listener stops, every
// live session is closed and the HTTP server shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("Listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.CloseAll()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("Transport stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case s.connectionsSem <- struct{}{}:
	default:
		monitoring.ConnectionsRejected.Inc()
		s.log.Warn().
			Str("remote_addr", r.RemoteAddr).
			Int("max_connections", s.cfg.MaxConnections).
			Msg("Connection rejected: at capacity")
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		<-s.connectionsSem
		s.log.Debug().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("WebSocket upgrade failed")
		return
	}

	go s.serveConn(conn)
}

func (s *Server) serveConn(raw net.Conn) {
	defer func() { <-s.connectionsSem }()

	wc := newWSConn(raw)
	sess := s.hub.OpenSession(wc)
	defer s.hub.CloseSession(sess)

	s.log.Debug().
		Int64("client_id", sess.ID()).
		Str("remote_addr", raw.RemoteAddr().String()).
		Msg("Connection established")

	go s.writePump(sess, wc)
	s.readLoop(sess, wc, raw)
}

// readLoop pulls frames off the wire until the peer goes away. Pongs feed the
// liveness flag; text frames pass through the per-client rate limiter and
// into the handler one at a time, so a connection's messages are processed in
// arrival order.
func (s *Server) readLoop(sess *relay.Session, wc *wsConn, raw net.Conn) {
	// Backstop for peers that neither talk nor answer probes; the
	// supervisor normally evicts them first.
	idleTimeout := 3 * s.cfg.HeartbeatInterval

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessageRatePerSec), s.cfg.MessageRateBurst)
	reader := wsutil.NewReader(raw, ws.StateServerSide)
	ctx := context.Background()

	for {
		if err := raw.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}

		hdr, err := reader.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug().Int64("client_id", sess.ID()).Err(err).Msg("Read failed")
			}
			return
		}

		switch hdr.OpCode {
		case ws.OpClose:
			return

		case ws.OpPong:
			sess.MarkAlive()
			if err := discardFrame(reader, hdr.Length); err != nil {
				return
			}

		case ws.OpPing:
			payload := make([]byte, hdr.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return
			}
			if err := wc.writePong(payload); err != nil {
				return
			}

		case ws.OpText, ws.OpBinary:
			payload := make([]byte, hdr.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return
			}
			// Incoming traffic counts as proof of life.
			sess.MarkAlive()

			if !limiter.Allow() {
				monitoring.RateLimitedMessages.Inc()
				s.rejectRateLimited(sess)
				continue
			}
			s.handler.HandleFrame(ctx, sess, payload)

		default:
			if err := discardFrame(reader, hdr.Length); err != nil {
				return
			}
		}
	}
}

// writePump drains the session outbox onto the wire. Exits when the session
// is torn down or a write fails; a write failure tears the session down so
// the read loop unblocks too.
func (s *Server) writePump(sess *relay.Session, wc *wsConn) {
	for {
		select {
		case <-sess.Done():
			return
		case payload := <-sess.Outbox():
			if err := wc.WriteText(payload); err != nil {
				s.log.Debug().Int64("client_id", sess.ID()).Err(err).Msg("Write failed")
				s.hub.CloseSession(sess)
				return
			}
		}
	}
}

func (s *Server) rejectRateLimited(sess *relay.Session) {
	payload, err := json.Marshal(protocol.ErrorFrame{Success: false, Error: "rate limit exceeded"})
	if err != nil {
		return
	}
	if !sess.Enqueue(payload) {
		s.log.Debug().Int64("client_id", sess.ID()).Msg("Rate limit notice dropped")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.hub.SessionCount(),
		"cpu_percent": snap.CPUPercent,
		"rss_bytes":   snap.RSSBytes,
		"goroutines":  snap.Goroutines,
		"timestamp":   snap.Timestamp,
	})
}

func discardFrame(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
