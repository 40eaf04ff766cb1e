package relay

import (
	"github.com/samber/lo"

	"github.com/cleanmate/chat-relay/internal/monitoring"
)

// DeliverTo queues payload for one identity. Delivery is best-effort: an
// offline identity or a full outbox drops the frame without error.
func (h *Hub) DeliverTo(identity string, payload []byte) bool {
	s, ok := h.Lookup(identity)
	if !ok {
		monitoring.DeliveriesDropped.WithLabelValues(monitoring.DropReasonOffline).Inc()
		return false
	}
	if !s.enqueue(payload) {
		monitoring.DeliveriesDropped.WithLabelValues(monitoring.DropReasonBufferFull).Inc()
		h.log.Warn().
			Str("identity", identity).
			Int64("client_id", s.id).
			Msg("Send buffer full, dropping frame")
		return false
	}
	monitoring.MessagesDelivered.Inc()
	return true
}

// DeliverToChannel fans payload out to every current member of the channel,
// minus any excluded identities. Membership is resolved at call time; each
// recipient succeeds or fails independently and a failure never aborts the
// rest of the fan-out. Returns the number of successful deliveries.
func (h *Hub) DeliverToChannel(channelID string, payload []byte, exclude ...string) int {
	delivered := 0
	for _, identity := range h.Members(channelID) {
		if lo.Contains(exclude, identity) {
			monitoring.DeliveriesDropped.WithLabelValues(monitoring.DropReasonExcluded).Inc()
			continue
		}
		if h.DeliverTo(identity, payload) {
			delivered++
		}
	}
	return delivered
}
