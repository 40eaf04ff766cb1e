package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cleanmate/chat-relay/internal/backend"
	"github.com/cleanmate/chat-relay/internal/monitoring"
	"github.com/cleanmate/chat-relay/internal/protocol"
)

// Backend is the handler's view of the external REST collaborators.
type Backend interface {
	History(ctx context.Context, channelID string) []json.RawMessage
	SaveMessage(ctx context.Context, rec backend.MessageRecord)
	SaveBatch(ctx context.Context, rec backend.BatchRecord)
	FetchUserData(ctx context.Context, userID string) (json.RawMessage, error)
}

// Handler processes one inbound frame at a time per connection: decode,
// mutate the registry, fan out, then talk to the collaborators. Registry
// writes always complete before any external call starts.
type Handler struct {
	hub     *Hub
	backend Backend
	log     zerolog.Logger
}

func NewHandler(hub *Hub, b Backend, log zerolog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		backend: b,
		log:     log.With().Str("component", "handler").Logger(),
	}
}

// HandleFrame dispatches one raw text frame from s. Malformed or invalid
// frames produce an error reply to the sender only; the connection stays up.
func (h *Handler) HandleFrame(ctx context.Context, s *Session, data []byte) {
	monitoring.MessagesReceived.Inc()

	env, err := protocol.Decode(data)
	if err != nil {
		h.rejectFrame(s, err)
		return
	}

	switch m := env.(type) {
	case *protocol.Join:
		h.handleJoin(ctx, s, m)
	case *protocol.Single:
		h.handleSingle(ctx, s, m)
	case *protocol.Batch:
		h.handleBatch(ctx, s, m)
	case *protocol.Direct:
		h.handleDirect(s, m)
	case *protocol.AdminTrigger:
		h.handleAdmin(ctx, m)
	}
}

func (h *Handler) rejectFrame(s *Session, err error) {
	var parseErr *protocol.ParseError
	var valErr *protocol.ValidationError
	switch {
	case errors.As(err, &parseErr):
		monitoring.ParseErrors.Inc()
	case errors.As(err, &valErr):
		monitoring.ValidationErrors.WithLabelValues(valErr.Field).Inc()
	}

	h.log.Debug().Int64("client_id", s.id).Err(err).Msg("Rejected frame")
	h.reply(s, protocol.NewErrorFrame(err))
}

// handleJoin binds the sender's identity and, when a channel is named, adds
// them to it and replies with that channel's history. A superseded prior
// connection is closed out after the new binding is in place.
func (h *Handler) handleJoin(ctx context.Context, s *Session, m *protocol.Join) {
	if prior := h.hub.Register(m.Identity, s); prior != nil {
		h.hub.CloseSession(prior)
	}

	if m.ChannelID == "" {
		return
	}

	h.hub.Join(m.ChannelID, m.Identity)

	history := h.backend.History(ctx, m.ChannelID)
	if history == nil {
		history = []json.RawMessage{}
	}
	h.reply(s, protocol.HistoryFrame{History: history})
}

// handleSingle fans one channel message out to every member, sender included,
// then persists it off the hot path.
func (h *Handler) handleSingle(ctx context.Context, s *Session, m *protocol.Single) {
	frame := protocol.ChannelFrame{
		ChannelID: m.ChannelID,
		Sender:    m.Identity,
		Seed:      m.Seed,
		Type:      m.Kind,
		Kind:      m.Kind,
		Message:   m.Message,
		FileURL:   m.FileURL,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode channel frame")
		return
	}

	h.hub.DeliverToChannel(m.ChannelID, payload)

	rec := backend.MessageRecord{
		UserID:    m.Identity,
		ChannelID: m.ChannelID,
		Message:   m.Message,
		Seed:      m.Seed,
		Kind:      m.Kind,
		FileURL:   m.FileURL,
	}
	go h.backend.SaveMessage(context.WithoutCancel(ctx), rec)
}

// handleBatch groups the valid items under one group id, delivers the whole
// batch as a single frame and persists the surviving items. A batch with no
// valid items is dropped entirely.
func (h *Handler) handleBatch(ctx context.Context, s *Session, m *protocol.Batch) {
	frame, dropped := GroupBatch(m)
	if dropped > 0 {
		h.log.Debug().
			Str("channel_id", m.ChannelID).
			Int("dropped", dropped).
			Msg("Dropped invalid batch items")
	}
	if frame == nil {
		return
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode batch frame")
		return
	}

	h.hub.DeliverToChannel(m.ChannelID, payload)

	items := make([]backend.MessageRecord, 0, len(frame.Items))
	for _, it := range frame.Items {
		items = append(items, backend.MessageRecord{
			UserID:    it.Sender,
			ChannelID: it.ChannelID,
			Message:   it.Message,
			Seed:      it.Seed,
			Kind:      it.Kind,
			FileURL:   it.FileURL,
			GroupID:   it.GroupID,
		})
	}
	rec := backend.BatchRecord{
		UserID:    m.Identity,
		ChannelID: m.ChannelID,
		Seed:      m.Seed,
		GroupID:   frame.GroupID,
		Items:     items,
	}
	go h.backend.SaveBatch(context.WithoutCancel(ctx), rec)
}

// handleDirect queues a message for one peer. An unregistered target is a
// silent no-op for the sender. Direct messages are ephemeral and never
// persisted.
func (h *Handler) handleDirect(s *Session, m *protocol.Direct) {
	payload, err := json.Marshal(protocol.DirectFrame{
		Success: true,
		From:    m.Identity,
		Message: m.Message,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode direct frame")
		return
	}
	h.hub.DeliverTo(m.TargetID, payload)
}

// handleAdmin fetches backend user data and pushes it to the trigger target.
func (h *Handler) handleAdmin(ctx context.Context, m *protocol.AdminTrigger) {
	data, err := h.backend.FetchUserData(ctx, m.TriggerTarget)
	if err != nil {
		h.log.Warn().
			Str("trigger_target", m.TriggerTarget).
			Err(err).
			Msg("Admin data fetch failed")
		return
	}

	payload, err := json.Marshal(protocol.AdminDataFrame{Success: true, Data: data})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode admin data frame")
		return
	}
	h.hub.DeliverTo(m.TriggerTarget, payload)
}

func (h *Handler) reply(s *Session, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode reply frame")
		return
	}
	if !s.enqueue(payload) {
		h.log.Debug().Int64("client_id", s.id).Msg("Reply dropped, outbox unavailable")
	}
}
