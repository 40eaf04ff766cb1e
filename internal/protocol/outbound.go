package protocol

import "encoding/json"

// Outbound frame shapes. Every reply and every delivery is one
// self-contained JSON frame.

// ErrorFrame is sent back to the sender on parse or validation failure.
type ErrorFrame struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorFrame wraps a classifier/validator error for the wire.
func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{Success: false, Error: err.Error()}
}

// DirectFrame delivers a direct message to its target.
type DirectFrame struct {
	Success bool   `json:"success"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// ChannelFrame delivers one single message to every channel member.
// Type and Kind carry the same payload kind; clients key off either.
type ChannelFrame struct {
	ChannelID string          `json:"channel_id"`
	Sender    string          `json:"sender"`
	Seed      json.RawMessage `json:"seed,omitempty"`
	Type      string          `json:"type"`
	Kind      string          `json:"type2"`
	Message   string          `json:"message,omitempty"`
	FileURL   string          `json:"file_url,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
}

// BatchFrame delivers a whole batch as one frame; recipients reconstruct the
// sub-messages from Items, all sharing GroupID.
type BatchFrame struct {
	Event     string          `json:"event"`
	ChannelID string          `json:"channel_id"`
	Sender    string          `json:"sender"`
	Seed      json.RawMessage `json:"seed,omitempty"`
	GroupID   string          `json:"group_id"`
	Items     []ChannelFrame  `json:"items"`
}

// HistoryFrame carries past channel messages to a joining client, forwarded
// verbatim from the history collaborator.
type HistoryFrame struct {
	History []json.RawMessage `json:"history"`
}

// AdminDataFrame pushes backend data to the target of an admin trigger.
type AdminDataFrame struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}
