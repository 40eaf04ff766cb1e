// Package protocol decodes, classifies and validates inbound wire frames and
// defines the outbound frame shapes. Frames are self-contained JSON messages;
// the message kind is determined once at the boundary and represented as a
// closed set of envelope types.
package protocol

import (
	"encoding/json"
	"strings"
)

// Kind identifies the classified message kind of an inbound frame.
type Kind int

const (
	KindJoin Kind = iota
	KindSingle
	KindBatch
	KindDirect
	KindAdminTrigger
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	case KindDirect:
		return "direct"
	case KindAdminTrigger:
		return "admin_trigger"
	default:
		return "unknown"
	}
}

// Payload kinds carried in the type2 field. Anything other than text is an
// attachment kind and requires a file_url instead of message text.
const PayloadText = "text"

const adminRole = "admin"

// Item is one sub-message of a batch frame.
type Item struct {
	Kind    string          `json:"type2,omitempty"`
	Type    string          `json:"type,omitempty"`
	Message string          `json:"message,omitempty"`
	FileURL string          `json:"file_url,omitempty"`
	Seed    json.RawMessage `json:"seed,omitempty"`
}

// frame is the raw superset of all inbound wire fields. It only exists for
// decoding; callers see one of the envelope types below.
type frame struct {
	Type          string          `json:"type"`
	Kind          string          `json:"type2"`
	ChannelID     string          `json:"channel_id"`
	Sender        string          `json:"sender"`
	Message       string          `json:"message"`
	FileURL       string          `json:"file_url"`
	Seed          json.RawMessage `json:"seed"`
	Items         []Item          `json:"items"`
	TargetID      string          `json:"target_id"`
	SessionRole   string          `json:"session_role"`
	TriggerTarget string          `json:"trigger_target"`
}

// Envelope is one parsed, classified and validated inbound message.
type Envelope interface {
	EnvelopeKind() Kind
}

// Join announces an identity and, when ChannelID is set, a channel membership.
// A join without a channel is registration-only.
type Join struct {
	Identity  string
	ChannelID string
}

func (*Join) EnvelopeKind() Kind { return KindJoin }

// Single is one channel-scoped message.
type Single struct {
	ChannelID string
	Identity  string
	Kind      string
	Message   string
	FileURL   string
	Seed      json.RawMessage
}

func (*Single) EnvelopeKind() Kind { return KindSingle }

// Batch carries multiple sub-messages sharing one envelope.
type Batch struct {
	ChannelID string
	Identity  string
	Seed      json.RawMessage
	Items     []Item
}

func (*Batch) EnvelopeKind() Kind { return KindBatch }

// Direct addresses a single peer by identity.
type Direct struct {
	Identity string
	TargetID string
	Message  string
}

func (*Direct) EnvelopeKind() Kind { return KindDirect }

// AdminTrigger is a privileged request to fetch backend data and push it to
// the trigger target.
type AdminTrigger struct {
	TriggerTarget string
}

func (*AdminTrigger) EnvelopeKind() Kind { return KindAdminTrigger }

// Decode parses one opaque text frame, classifies it by field presence and
// applies kind-specific validation. It returns *ParseError for malformed JSON
// and *ValidationError for missing required fields; neither is fatal to the
// connection.
func Decode(data []byte) (Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ParseError{Err: err}
	}

	f.Message = strings.TrimSpace(f.Message)

	switch {
	case f.SessionRole == adminRole && f.TriggerTarget != "":
		return &AdminTrigger{TriggerTarget: f.TriggerTarget}, nil

	case f.Type == "join":
		return classifyJoin(&f)

	case len(f.Items) > 0:
		return classifyBatch(&f)

	case f.TargetID != "":
		return classifyDirect(&f)

	case f.Sender != "" && f.ChannelID == "" && f.Message == "" && f.FileURL == "":
		// Identity alone, no payload: registration-only join.
		return &Join{Identity: f.Sender}, nil

	default:
		return classifySingle(&f)
	}
}
