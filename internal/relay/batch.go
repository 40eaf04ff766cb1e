package relay

import (
	"github.com/google/uuid"

	"github.com/cleanmate/chat-relay/internal/monitoring"
	"github.com/cleanmate/chat-relay/internal/protocol"
)

// GroupBatch normalizes a batch envelope into one deliverable frame. Every
// surviving item shares a freshly minted group id; items failing the per-item
// rule are dropped silently and counted. Returns a nil frame when nothing
// survives.
func GroupBatch(b *protocol.Batch) (*protocol.BatchFrame, int) {
	groupID := uuid.NewString()

	items := make([]protocol.ChannelFrame, 0, len(b.Items))
	dropped := 0
	for _, raw := range b.Items {
		it, ok := protocol.NormalizeItem(raw, b.Seed)
		if !ok {
			dropped++
			continue
		}
		items = append(items, protocol.ChannelFrame{
			ChannelID: b.ChannelID,
			Sender:    b.Identity,
			Seed:      it.Seed,
			Type:      it.Type,
			Kind:      it.Kind,
			Message:   it.Message,
			FileURL:   it.FileURL,
			GroupID:   groupID,
		})
	}

	if dropped > 0 {
		monitoring.BatchItemsDropped.Add(float64(dropped))
	}
	if len(items) == 0 {
		return nil, dropped
	}

	return &protocol.BatchFrame{
		Event:     "batch",
		ChannelID: b.ChannelID,
		Sender:    b.Identity,
		Seed:      b.Seed,
		GroupID:   groupID,
		Items:     items,
	}, dropped
}
