package relay

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/cleanmate/chat-relay/internal/monitoring"
)

// Reaper is the liveness supervisor. On every interval it sweeps all tracked
// sessions: a session that failed to acknowledge the previous probe is torn
// down, everyone else gets their flag cleared and a fresh ping. A connection
// must miss two consecutive sweeps to be evicted.
type Reaper struct {
	hub      *Hub
	interval time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger
}

func NewReaper(hub *Hub, interval time.Duration, clock clockwork.Clock, log zerolog.Logger) *Reaper {
	return &Reaper{
		hub:      hub,
		interval: interval,
		clock:    clock,
		log:      log.With().Str("component", "reaper").Logger(),
	}
}

// Run sweeps until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("Liveness supervisor started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.tick()
		}
	}
}

func (r *Reaper) tick() {
	for _, s := range r.hub.sessionsSnapshot() {
		if !s.alive.Swap(false) {
			monitoring.LivenessEvictions.Inc()
			r.log.Info().
				Int64("client_id", s.id).
				Str("identity", s.Identity()).
				Msg("No heartbeat response, evicting connection")
			r.hub.CloseSession(s)
			continue
		}
		if err := s.conn.Ping(); err != nil {
			r.log.Debug().
				Int64("client_id", s.id).
				Err(err).
				Msg("Heartbeat probe failed")
			continue
		}
		monitoring.HeartbeatsSent.Inc()
	}
}
