package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire field names, not Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Rule structs carry the kind-specific required-field constraints. A text
// payload needs non-empty message text; an attachment payload needs a
// file_url instead.

type joinRules struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Sender    string `json:"sender" validate:"required"`
}

type singleRules struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Sender    string `json:"sender" validate:"required"`
	Kind      string `json:"type2"`
	Message   string `json:"message" validate:"required_if=Kind text"`
	FileURL   string `json:"file_url" validate:"required_unless=Kind text"`
}

type batchRules struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Sender    string `json:"sender" validate:"required"`
}

type directRules struct {
	Sender   string `json:"sender" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

type itemRules struct {
	Kind    string `json:"type2"`
	Message string `json:"message" validate:"required_if=Kind text"`
	FileURL string `json:"file_url" validate:"required_unless=Kind text"`
}

func classifyJoin(f *frame) (Envelope, error) {
	if err := checkRules(joinRules{ChannelID: f.ChannelID, Sender: f.Sender}, PayloadText); err != nil {
		return nil, err
	}
	return &Join{Identity: f.Sender, ChannelID: f.ChannelID}, nil
}

func classifySingle(f *frame) (Envelope, error) {
	kind := payloadKind(f.Kind, "")
	rules := singleRules{
		ChannelID: f.ChannelID,
		Sender:    f.Sender,
		Kind:      kind,
		Message:   f.Message,
		FileURL:   f.FileURL,
	}
	if err := checkRules(rules, kind); err != nil {
		return nil, err
	}
	return &Single{
		ChannelID: f.ChannelID,
		Identity:  f.Sender,
		Kind:      kind,
		Message:   f.Message,
		FileURL:   f.FileURL,
		Seed:      f.Seed,
	}, nil
}

func classifyBatch(f *frame) (Envelope, error) {
	if err := checkRules(batchRules{ChannelID: f.ChannelID, Sender: f.Sender}, PayloadText); err != nil {
		return nil, err
	}
	return &Batch{
		ChannelID: f.ChannelID,
		Identity:  f.Sender,
		Seed:      f.Seed,
		Items:     f.Items,
	}, nil
}

func classifyDirect(f *frame) (Envelope, error) {
	rules := directRules{Sender: f.Sender, TargetID: f.TargetID, Message: f.Message}
	if err := checkRules(rules, PayloadText); err != nil {
		return nil, err
	}
	return &Direct{Identity: f.Sender, TargetID: f.TargetID, Message: f.Message}, nil
}

// NormalizeItem applies the per-item validation rule to one batch sub-item.
// The item inherits the envelope's ordering token unless it supplies its own.
// ok is false when the item must be dropped from the batch.
func NormalizeItem(it Item, envelopeSeed []byte) (Item, bool) {
	kind := payloadKind(it.Kind, it.Type)
	msg := strings.TrimSpace(it.Message)

	if err := validate.Struct(itemRules{Kind: kind, Message: msg, FileURL: it.FileURL}); err != nil {
		return Item{}, false
	}

	seed := it.Seed
	if len(seed) == 0 {
		seed = envelopeSeed
	}

	return Item{
		Kind:    kind,
		Type:    kind,
		Message: msg,
		FileURL: it.FileURL,
		Seed:    seed,
	}, true
}

// payloadKind resolves the payload kind, preferring type2 over type and
// defaulting to text.
func payloadKind(kind, fallback string) string {
	if kind != "" {
		return kind
	}
	if fallback != "" {
		return fallback
	}
	return PayloadText
}

func checkRules(rules any, kind string) error {
	err := validate.Struct(rules)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "frame", Reason: "Failed to process message"}
	}

	return validationErrorFor(fieldErrs[0], kind)
}

// validationErrorFor maps a validator failure to the wire-level error message,
// matching the shapes clients already handle.
func validationErrorFor(fe validator.FieldError, kind string) *ValidationError {
	switch fe.Field() {
	case "channel_id", "sender":
		return &ValidationError{
			Field:  fe.Field(),
			Reason: "Missing required properties: channel_id/sender",
		}
	case "message":
		if fe.Tag() == "required_if" {
			return &ValidationError{
				Field:  "message",
				Reason: "message is required for type2=text",
			}
		}
		return &ValidationError{Field: "message"}
	case "file_url":
		return &ValidationError{
			Field:  "file_url",
			Reason: fmt.Sprintf("file_url is required when type2=%s", kind),
		}
	default:
		return &ValidationError{Field: fe.Field()}
	}
}
